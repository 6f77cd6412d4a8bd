// Package torznab provides a client for Torznab-compatible search indexers
// (Prowlarr, Jackett). The dispatcher queries it by title and ranks the
// returned candidates before submitting one to the download client.
package torznab
