// Package kleio implements the source-oriented document model used to
// transcribe historical records: typed Elements grouped into Groups whose
// shapes (slot lists, allowed sub-groups, include hooks) are declared at
// runtime in a Registry. Groups render to and parse from Kleio notation.
//
// Shapes and element types are descriptors, not Go types: extending a shape
// registers a new descriptor that copies the parent's lists, and every Group
// carries a pointer to the descriptor it was built from.
package kleio
