// Package log provides the slog logger used by iconscan.
//
// Site configuration can carry cookies and authorization headers, and
// target URLs can carry credentials or tokens. The SecureHandler masks
// those before a record reaches the underlying text or JSON handler:
//   - attributes whose key names a secret (cookie, authorization, token, ...)
//   - string values that look like bearer or basic credentials, JWTs or keys
//   - header maps, masking only the sensitive entries
//   - URLs, masking userinfo passwords and secret query parameters
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
