package openaicompat

import "net/http"

// headerTransport adds fixed headers to every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// newHTTPClient wraps base so that every call carries headers. The client
// has no overall timeout; streams are bounded by their context.
func newHTTPClient(base *http.Client, headers http.Header) *http.Client {
	var rt http.RoundTripper = http.DefaultTransport
	var jar http.CookieJar
	if base != nil {
		if base.Transport != nil {
			rt = base.Transport
		}
		jar = base.Jar
	}
	return &http.Client{
		Transport: &headerTransport{base: rt, headers: headers.Clone()},
		Jar:       jar,
	}
}
