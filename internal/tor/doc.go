// Package tor routes icon checks for onion services through Tor.
//
// A Client wraps a SOCKS5 dialer and satisfies probe.Dialer, so the same
// probe client that checks clearnet sites can check .onion targets.
// EmbeddedTor starts a private Tor daemon via tornago when no external
// proxy is available.
package tor
