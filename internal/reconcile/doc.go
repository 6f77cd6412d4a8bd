// Package reconcile syncs canonical-library state into local author and
// book records. A sync fetches the full item list up front, resolves each
// item to an author/book identity, and upserts; a dry run computes the same
// diff without writing anything.
package reconcile
