// Package planar defines the 2D path-planning collaborator interface.
// Implementations (sdfx) turn a lateral offset request into toolpaths
// behind this interface. The abstraction allows swapping offsetting
// backends without changing the scheduler or the synthesizer.
package planar
