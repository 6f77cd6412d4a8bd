// Package dispatch turns missing-work requests into tracked acquisition
// jobs: it searches the indexer, ranks the candidates, submits the winner to
// the download client, and records every step in the job state machine. At
// most one non-terminal job exists per (author, normalized title).
package dispatch
