// Package probe provides the HTTP client used by the icon checks.
//
// A probe is a single synchronous GET. It returns the status code, the
// response headers and the full body, and reports transport failures
// (DNS, connect, timeout) as ErrTransport so callers can tell them apart
// from an unexpected status code.
//
// Every request carries a fixed set of browser-like default headers.
// Site-specific headers and a cookie can be layered on top, the same way
// authenticated scans of hidden services are configured.
package probe
