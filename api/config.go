// Package api provides the HTTP server for recalling, curating, and
// auditing persona memory.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7411")
	ListenAddr string

	// DefaultMode is the retrieval mode assumed when a recall request
	// does not name one (e.g., "chat").
	DefaultMode string

	// DefaultHeat is the heat level assumed when a recall request does
	// not carry one.
	DefaultHeat int
}
