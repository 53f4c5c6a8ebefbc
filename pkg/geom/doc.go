// Package geom defines the immutable 2D path model used by every stage of the
// toolpath pipeline: points with speed hints, exact circular arcs, and paths
// parameterized by arc length. Arcs stay arcs until a caller explicitly
// polygonizes them for rendering or low-level emission.
package geom
