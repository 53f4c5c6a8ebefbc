// Package gcode holds the motion command vocabulary produced by the
// synthesizer and renders it as G-code text, one command per line.
//
// The Writer is stateful: it remembers the last emitted axis words and feed
// so that unchanged words are left out and moves that change nothing are
// dropped.
package gcode
