package core

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Request is a single logical call to the portal. URL may be relative to
// the client's base url or absolute.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Form   url.Values
	// form field set to the session token on every attempt, so a retry
	// after reauthentication sends the refreshed token
	TokenField string
}

func NewGet(u string) *Request {
	return &Request{Method: http.MethodGet, URL: u, Header: http.Header{}}
}

func NewPostForm(u string, form url.Values) *Request {
	return &Request{Method: http.MethodPost, URL: u, Header: http.Header{}, Form: form}
}

// NewTokenPostForm is NewPostForm with the session token in field.
func NewTokenPostForm(u string, form url.Values, field string) *Request {
	req := NewPostForm(u, form)
	req.TokenField = field
	return req
}

func (r *Request) clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = http.Header{}
	}
	if r.Form != nil {
		out.Form = cloneValues(r.Form)
	}
	return &out
}

func cloneValues(values url.Values) url.Values {
	out := url.Values{}
	for k, v := range values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Response is the final response after redirects were followed.
type Response struct {
	StatusCode int
	// url of the last request in the redirect chain
	URL    *url.URL
	Header http.Header
	Body   []byte
}

func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return nil, &ParseError{Page: r.URL.Path, Field: "document", Err: err}
	}
	return doc, nil
}

// Handler performs a request, it is the unit interceptors wrap.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor wraps a handler, it can modify the request before calling
// next, inspect the response after, or call next more than once.
type Interceptor func(next Handler) Handler

// Chain composes interceptors around base. the first interceptor is
// the outermost: it sees the request first and the response last.
func Chain(base Handler, interceptors ...Interceptor) Handler {
	handler := base
	for i := len(interceptors) - 1; i >= 0; i-- {
		handler = interceptors[i](handler)
	}
	return handler
}
