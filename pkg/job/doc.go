// Package job loads machining jobs from YAML and runs them.
//
// A job names its tools once and refers to them from operations. Loading is
// split into three steps: Parse decodes the document, Validate reports every
// problem it can find as a Finding, and Compile turns a valid job into a
// Plan of ready-to-run operations. A Runner executes a Plan with one worker
// goroutine per distinct tool; Program stitches the per-operation results
// into a single command stream.
package job
