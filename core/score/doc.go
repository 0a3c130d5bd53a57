// Package score provides a typed view over a MuseScore score tree.
//
// The tree itself stays an xmlquery node graph owned by a core/xml Document;
// the types here are thin handles that give names to the parts of it the
// merge packages navigate:
//
//   - Score: the museScore root and its first Score element
//   - Part: a named track with one Instrument and its staff definitions
//   - Instrument and Channel: names and MIDI sound configuration
//   - Staff: a content staff (Score/Staff[@id]) holding Measures and Frames
//   - Measure, Frame: the children of a content staff
//   - SystemLocks: the document-level lock ranges referencing measure eids
//
// Handles never copy; mutations through them change the underlying tree.
package score
