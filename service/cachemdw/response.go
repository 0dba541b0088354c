package cachemdw

import (
	"encoding/json"
	"net/http"

	"github.com/kava-labs/webhook-batch-proxy/service/batchmdw"
)

// cachedHeaders are the upstream reply headers kept with a cached rejection
var cachedHeaders = []string{
	"Content-Type",
}

// CachedReply represents the structure stored in the cache for every rejected destination
type CachedReply struct {
	StatusCode int               `json:"status_code"`
	HeaderMap  map[string]string `json:"header_map"`
	Body       []byte            `json:"body"`
}

// NewCachedReply keeps the parts of reply worth replaying to later callers
func NewCachedReply(reply *batchmdw.Reply) *CachedReply {
	headerMap := make(map[string]string)

	for _, name := range cachedHeaders {
		if value := reply.Header.Get(name); value != "" {
			headerMap[name] = value
		}
	}

	return &CachedReply{
		StatusCode: reply.StatusCode,
		HeaderMap:  headerMap,
		Body:       reply.Body,
	}
}

// Reply converts the cached reply back to a batchmdw.Reply
func (c *CachedReply) Reply() *batchmdw.Reply {
	header := http.Header{}
	for name, value := range c.HeaderMap {
		header.Set(name, value)
	}

	return &batchmdw.Reply{
		StatusCode: c.StatusCode,
		Header:     header,
		Body:       c.Body,
	}
}

func (c *CachedReply) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

func UnmarshalCachedReply(data []byte) (*CachedReply, error) {
	var reply CachedReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, err
	}

	return &reply, nil
}
