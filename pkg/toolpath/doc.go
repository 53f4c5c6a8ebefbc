// Package toolpath binds geometry to a cutting tool. A Toolpath carries the
// path, the shared Tool, an optional lateral transform, the entry descriptor
// used to get the tool into material, and the tab flags the motion
// synthesizer needs. Tabs are arc-length intervals that split toolpaths into
// alternating cut and bridge pieces.
package toolpath
