// Package errors provides coded, structured errors for dux.
//
// Every failure the library can observe is registered under a short code
// (for example "D002") that maps to:
//   - a category (persistence, store, config)
//   - a one-line message
//   - a longer explanation
//
// Most of these errors never reach a caller. Persistence failures during
// store construction are absorbed into the default value and only logged,
// so the code is what ties a log line back to its cause:
//
//	err := errors.New("D002").
//	    WithStore("settings").
//	    Wrap(decodeErr)
//	logger.Warn("persisted state ignored", "code", err.Code, "error", err)
//
// The CLI renders the same errors for humans with Format.
package errors
