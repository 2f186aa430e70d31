// Package message defines the request and response value objects exchanged
// through a transport backend. They are plain in-process values: no wire
// encoding, no validation beyond construction.
package message

// Request describes one HTTP-like request. Instances are compared by pointer
// identity; a backend hands the same *Request back on the connection it
// creates for it.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Body   []byte
}

// NewRequest creates a request for the given method and URL.
func NewRequest(method, url string) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Header: map[string]string{},
	}
}

// Response carries the outcome of one exchange.
type Response struct {
	StatusCode int
	Header     map[string]string
	Body       []byte
}

// NewResponse creates a response with the given status code and body.
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     map[string]string{},
		Body:       body,
	}
}
