// Package unifi is a small client for the UniFi Network controller API,
// limited to what is needed to switch PoE port power: log in, list
// devices, and write port overrides.
//
// Two controller layouts are supported. A self-hosted Network application
// serves the API at the root and authenticates with /api/login. A UniFi OS
// console (UDM, Cloud Key Gen2+) authenticates with /api/auth/login, proxies
// the Network API under /proxy/network and requires an X-CSRF-Token header
// on writes.
package unifi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OpenCHAMI/maas-power-unifi/pkg/client"
	"github.com/rs/zerolog/log"
)

type Flavor string

const (
	SelfHosted Flavor = "self-hosted"
	UnifiOS    Flavor = "unifi-os"
)

type Client struct {
	base     *url.URL
	site     string
	flavor   Flavor
	timeout  time.Duration
	insecure bool
	caCert   string
	http     *http.Client
	csrf     string
}

type Option func(c *Client)

func WithSite(site string) Option {
	return func(c *Client) {
		if site != "" {
			c.site = site
		}
	}
}

func WithFlavor(flavor Flavor) Option {
	return func(c *Client) {
		if flavor != "" {
			c.flavor = flavor
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithInsecure(insecure bool) Option {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// WithCACert() verifies the controller against the PEM bundle at path
// instead of the system roots.
func WithCACert(path string) Option {
	return func(c *Client) {
		c.caCert = path
	}
}

// WithHTTPClient() replaces the internal HTTP client. The client should
// carry a cookie jar, otherwise the login session is lost.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New() creates a client for the controller at baseURL. Nothing is sent
// until Authenticate() is called.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse controller URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("controller URL %q is not absolute", baseURL)
	}

	c := &Client{
		base:   u,
		site:   "default",
		flavor: SelfHosted,
	}
	for _, opt := range opts {
		opt(c)
	}
	switch c.flavor {
	case SelfHosted, UnifiOS:
	default:
		return nil, fmt.Errorf("unknown controller flavor %q", c.flavor)
	}

	if c.http == nil {
		httpOpts := []client.Option{
			client.WithCookieJar(),
			client.WithTimeout(c.timeout),
			client.WithInsecure(c.insecure),
		}
		if c.caCert != "" {
			pool, err := client.LoadCertPool(c.caCert)
			if err != nil {
				return nil, err
			}
			httpOpts = append(httpOpts, client.WithCertPool(pool))
		}
		c.http = client.NewHTTPClient(httpOpts...)
	}
	return c, nil
}

// Authenticate() logs in and keeps the session cookie (and CSRF token on
// UniFi OS) for the following calls.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return &AuthError{Msg: "no username or password provided"}
	}
	body, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	endpoint := c.endpoint("api", "login")
	if c.flavor == UnifiOS {
		endpoint = c.endpoint("api", "auth", "login")
	}

	err = c.do(ctx, "log in", http.MethodPost, endpoint, body, nil)
	var cerr *ControllerError
	if errors.As(err, &cerr) && cerr.StatusCode == http.StatusBadRequest {
		// the classic controller answers bad credentials with 400 api.err.Invalid
		return &AuthError{StatusCode: cerr.StatusCode, Msg: cerr.Msg}
	}
	if err != nil {
		return err
	}
	log.Debug().Str("url", c.base.String()).Str("flavor", string(c.flavor)).Msg("logged in to controller")
	return nil
}

// Logout() ends the session. Failures are only logged since the run is
// over at this point anyway.
func (c *Client) Logout(ctx context.Context) {
	endpoint := c.endpoint("api", "logout")
	if c.flavor == UnifiOS {
		endpoint = c.endpoint("api", "auth", "logout")
	}
	if err := c.do(ctx, "log out", http.MethodPost, endpoint, nil, nil); err != nil {
		log.Debug().Err(err).Msg("failed to log out of controller")
	}
}

// endpoint() builds a URL below the controller base URL. Site scoped
// paths get the Network application prefix on UniFi OS.
func (c *Client) endpoint(elem ...string) string {
	return c.base.JoinPath(elem...).String()
}

func (c *Client) siteEndpoint(elem ...string) string {
	parts := []string{"api", "s", c.site}
	if c.flavor == UnifiOS {
		parts = append([]string{"proxy", "network"}, parts...)
	}
	return c.base.JoinPath(append(parts, elem...)...).String()
}

// do() sends one request and classifies the outcome. When out is not nil
// the data member of the response envelope is decoded into it.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, out any) error {
	header := client.HTTPHeader{}.CSRFToken(c.csrf)
	if body != nil {
		header.ContentType("application/json")
	}
	res, b, err := client.MakeRequest(ctx, c.http, endpoint, method, body, header)
	if err != nil {
		var terr *client.TransportError
		if errors.As(err, &terr) || res == nil {
			return &NetworkError{Op: op, URL: endpoint, Err: err}
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if token := res.Header.Get("X-CSRF-Token"); token != "" {
		c.csrf = token
	}

	var envelope response
	decodeErr := json.Unmarshal(b, &envelope)
	msg := envelope.Meta.Msg
	if decodeErr != nil && len(b) > 0 {
		msg = strings.TrimSpace(string(b))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return &AuthError{StatusCode: res.StatusCode, Msg: msg}
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return &ControllerError{Op: op, StatusCode: res.StatusCode, Msg: msg}
	}

	// UniFi OS login answers with a bare user object, so only look at
	// meta when the controller sent one.
	if decodeErr == nil && envelope.Meta.RC != "" && envelope.Meta.RC != "ok" {
		if msg == "api.err.LoginRequired" {
			return &AuthError{StatusCode: res.StatusCode, Msg: msg}
		}
		return &ControllerError{Op: op, StatusCode: res.StatusCode, Msg: msg}
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return &ControllerError{Op: op, StatusCode: res.StatusCode, Msg: fmt.Sprintf("failed to decode response: %v", decodeErr)}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &ControllerError{Op: op, StatusCode: res.StatusCode, Msg: fmt.Sprintf("failed to decode response data: %v", err)}
	}
	return nil
}
