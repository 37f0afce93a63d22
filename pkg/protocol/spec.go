package protocol

import (
	"net/http"
	"net/url"

	"github.com/go115/cloud115/internal/envelope"
)

// Request is the wire description of one remote call.
type Request struct {
	Method string
	// URL is absolute; its host selects the remote service.
	URL   string
	Query url.Values
	// Form, when non-nil, is sent as an urlencoded body.
	Form url.Values
}

// Get builds a GET request.
func Get(rawURL string, query url.Values) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, Query: query}
}

// PostForm builds a POST request with an urlencoded body.
func PostForm(rawURL string, query, form url.Values) *Request {
	if form == nil {
		form = url.Values{}
	}
	return &Request{Method: http.MethodPost, URL: rawURL, Query: query, Form: form}
}

// Spec describes one remote operation and how to decode its payload.
type Spec[T any] interface {
	Request() (*Request, error)
	Decode(env *envelope.Envelope) (T, error)
}

// EnvelopeParser is implemented by specs whose endpoint does not use the
// {state, ...} wrapper. ParseEnvelope must return a RemoteProtocolError when
// the body reports a failure.
type EnvelopeParser interface {
	ParseEnvelope(body []byte) (*envelope.Envelope, error)
}

// Page is one decoded page of a paginated listing. Position is the cursor
// the page was fetched at and Total the remote-reported bound for the
// strategy in use (item count or page count).
type Page[T any] struct {
	Items    []T
	Position int
	Total    int
}

// PagedSpec is a Spec returning pages whose cursor can be moved.
type PagedSpec[T any] interface {
	Spec[Page[T]]
	SetPosition(position int)
}
