// Package observability builds the process logger.
//
// Level and encoding come from LOG_LEVEL and LOG_FORMAT; request-scoped
// fields are added by the HTTP middleware.
package observability
