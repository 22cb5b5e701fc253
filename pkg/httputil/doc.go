// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Every error body has the shape {"detail": ...}. The detail is a string for
// ordinary errors and a structured object for validation reports. 401
// responses always carry "WWW-Authenticate: Bearer".
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, assistant)
//	httputil.WriteCreated(w, user)
//	httputil.WriteMessage(w, "Successfully logged out")
//
//	httputil.WriteBadRequest(w, "Email already registered")
//	httputil.WriteUnauthorized(w, "Could not validate credentials")
//	httputil.WriteForbidden(w, "Not enough permissions")
//	httputil.WriteInternalError(w, r, err) // logs err, never returns it
//
// # Request Parsing
//
//	var req UserUpdate
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	page, ok := httputil.ParsePaginationOrError(w, r, 100, 1000)
//	token, ok := httputil.BearerToken(r)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(10*1024*1024), // 10MB
//	)
//
// # Related Packages
//
//   - pkg/middleware: Authentication, authorization and login rate limiting
package httputil
