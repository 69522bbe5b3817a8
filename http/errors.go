package http

import "errors"

// ErrBodyTooLarge is returned when a request body exceeds the upload limit.
var ErrBodyTooLarge = errors.New("request body too large")
