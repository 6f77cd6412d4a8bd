// Package audiobookshelf provides a client for the Audiobookshelf server,
// the canonical library that holds owned audiobook items. The reconciler
// reads the item list from here and the importer triggers library scans
// after placing new files.
package audiobookshelf
