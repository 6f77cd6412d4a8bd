// Package api defines the transport-facing representations of catalog
// records and the converters that build them. Handlers and the CLI share
// these types so payload shapes stay consistent across surfaces.
package api
