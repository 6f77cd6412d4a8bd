// Package daemon hosts the long-running bookarr process: it enforces
// single-instance execution with a lock file, wires the catalog store to the
// external service clients, runs the autosync scheduler and the import poll
// loop, and serves the HTTP API.
package daemon
