// Package http serves the h2kv key space over HTTP.
//
// Every path except the root addresses a resource:
//
//	HEAD   /<key>[.<ext>]   metadata of the negotiated representation
//	GET    /<key>[.<ext>]   content of the negotiated representation
//	PUT    /<key>[.<ext>]   store a representation (201 new, 204 overwrite)
//	DELETE /<key>[.<ext>]   remove one or every representation (204)
//	GET    /                JSON listing, ?prefix=&limit=&cursor=
//
// A request naming an extension prefers that representation; otherwise the
// Accept header decides. GET and HEAD responses carry ETag, Last-Modified,
// Content-Location and Vary: Accept, and GET honors conditional and range
// requests.
//
// # Errors
//
// Errors are JSON bodies of the form:
//
//	{"error": "not_acceptable", "message": "No representation matches the Accept header"}
//
// HandleError maps the sentinel errors of package h2kv to status codes in a
// single table. Internal details are logged, never returned.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize: 64 << 20,
//	    Logger:        slog.Default(),
//	}, h2kv.NewService(store))
//	srv := &nethttp.Server{Addr: ":5928", Handler: handler.Router()}
//
// The server itself, including cleartext HTTP/2, is set up by cmd/h2kv.
package http
