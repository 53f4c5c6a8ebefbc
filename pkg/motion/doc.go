// Package motion turns ordered cut layers into motion commands.
//
// Every toolpath goes through the same cycle: travel to its start (a
// retract and rapid, a feed move for joined layers, or a short nudge),
// enter the material with exactly one strategy (plunge over verified cut
// stock, helix, or zig-zag ramp), follow the path, and leave with a rapid
// up. The tool never rapids below the floor the previous layer verified,
// and the program always finishes at safe Z.
package motion
