package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const UserAgent = "maas-power-unifi"

// HTTP aliases for readibility
type HTTPHeader map[string]string
type HTTPBody []byte

func (h HTTPHeader) ContentType(contentType string) HTTPHeader {
	h["Content-Type"] = contentType
	return h
}

// CSRFToken() adds the token UniFi OS consoles require on every write.
func (h HTTPHeader) CSRFToken(token string) HTTPHeader {
	if token != "" {
		h["X-CSRF-Token"] = token
	}
	return h
}

// TransportError is returned by MakeRequest() when the request could not
// be sent or its response could not be read. Errors building the request
// are returned as-is.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MakeRequest() is a wrapper function that condenses simple HTTP
// requests done to a single call. It expects an HTTP client, URL, HTTP
// method, request body, and request headers.
//
// Returns a HTTP response object, response body as byte array, and any
// error that may have occurred with making the request. The response body
// is always fully read and closed.
func MakeRequest(ctx context.Context, client *http.Client, url string, httpMethod string, body HTTPBody, header HTTPHeader) (*http.Response, HTTPBody, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create new HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Err: fmt.Errorf("failed to make request: %w", err)}
	}
	b, err := io.ReadAll(res.Body)
	if cerr := res.Body.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("could not close response resource")
	}
	if err != nil {
		return res, nil, &TransportError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return res, b, nil
}
