// Package deluge provides a client for the Deluge web UI JSON-RPC API: the
// download client that acquisition jobs are submitted to. The dispatcher
// adds magnets with a label, and the importer polls transfer status until a
// download finishes.
package deluge
