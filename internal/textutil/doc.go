// Package textutil provides the title normalization and filename sanitization
// rules shared across the catalog, reconciler, and dispatcher.
//
// NormalizeTitle is the identity function for book titles: two titles that
// normalize equally are the same work. The sanitizers produce safe path
// segments when the importer lays files into the library tree.
//
// Keep normalization deterministic; the jobs table enforces uniqueness on the
// normalized form, so any rule change invalidates existing rows.
package textutil
