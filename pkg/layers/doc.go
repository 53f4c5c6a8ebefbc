// Package layers realizes scheduled Z slices as concrete cut layers and
// orders them. A PathCache keeps the expensive planner output per lateral
// offset, the Builder makes one CutLayer per region per offset, and the Tree
// nests regions across depth so that each region is finished before the
// tool moves on to the next one.
//
// Nesting uses bounding-box overlap in place of true polygon containment.
// Concave or interleaved shapes whose boxes overlap are therefore treated as
// one region.
package layers
