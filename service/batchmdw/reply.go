package batchmdw

import (
	"net/http"
)

// Reply is the outcome of delivering a batch. The same Reply is
// handed to every member of the batch and must not be modified once sent.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Write writes the reply as the response to an inbound request
func (r *Reply) Write(w http.ResponseWriter) {
	header := w.Header()

	for name, values := range r.Header {
		for _, value := range values {
			header.Add(name, value)
		}
	}

	w.WriteHeader(r.StatusCode)
	w.Write(r.Body)
}

// Successful returns true for 2xx replies
func (r *Reply) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// IsDestinationRejection returns true for statuses upstream uses when
// the webhook no longer exists or the token is wrong
func (r *Reply) IsDestinationRejection() bool {
	return r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusNotFound
}

// hopHeaders are dropped from upstream replies,
// they describe the upstream connection rather than the reply
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	// set by the server when each member's response is written
	"Content-Length",
}

func cleanUpstreamHeader(upstream http.Header) http.Header {
	header := upstream.Clone()
	if header == nil {
		header = http.Header{}
	}

	for _, name := range hopHeaders {
		header.Del(name)
	}

	return header
}
