package exchange

import (
	"net/http"
	"net/url"
	"time"
)

// Request is the wire shape a Signer authenticates. Sign sets RawQuery
// to the exact query string to send, so the signed payload and the sent
// payload can never drift apart.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     []byte
	Header   http.Header
	RawQuery string
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Query:  url.Values{},
		Header: http.Header{},
	}
}

// Signer authenticates a request for one exchange account. One
// implementation exists per signing scheme; the Factory picks it when
// the account's client is built.
type Signer interface {
	Sign(req *Request, now time.Time)
}
