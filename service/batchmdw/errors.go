package batchmdw

import (
	"encoding/json"
	"net/http"
)

// Codes returned in the `code` field of error responses produced by the proxy
// service itself, as opposed to errors relayed from upstream
const (
	ErrorCodeInvalidPath         = 100
	ErrorCodeInvalidBody         = 101
	ErrorCodeMethodNotAllowed    = 102
	ErrorCodeBodyTooLarge        = 103
	ErrorCodeUnsupportedMedia    = 104
	ErrorCodeUpstreamUnavailable = 105
	ErrorCodeShuttingDown        = 106
)

// ErrorResponse is the body of error responses produced by the proxy service
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// NewErrorReply returns a json error reply with the given status
func NewErrorReply(statusCode int, code int, message string) *Reply {
	// marshaling a struct of a string and an int can't fail
	body, _ := json.Marshal(ErrorResponse{Error: message, Code: code})

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	return &Reply{
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
	}
}

// WriteError writes a json error response
func WriteError(w http.ResponseWriter, statusCode int, code int, message string) {
	NewErrorReply(statusCode, code, message).Write(w)
}
