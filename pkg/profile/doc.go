// Package profile provides wall profiles: functions from depth below the top
// of an operation to the lateral offset the wall should have there.
// Draft, Chamfer and Roundover are built in; anything else can be written
// as a zygomys Lisp expression evaluated in a sandbox.
package profile
