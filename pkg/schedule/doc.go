// Package schedule turns an operation's depth parameters into the ordered
// list of Z slices the motion synthesizer cuts: major layers top-down, each
// followed by the wall-profile sublayers that refine it bottom-up.
package schedule
