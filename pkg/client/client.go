package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// Option configures the *http.Client built by NewHTTPClient().
type Option func(client *http.Client)

// NewHTTPClient() creates a new HTTP client with its own transport so that
// TLS options never leak into http.DefaultTransport.
func NewHTTPClient(opts ...Option) *http.Client {
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSClientConfig:       &tls.Config{},
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			DisableKeepAlives:     true,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func WithTimeout(timeout time.Duration) Option {
	return func(client *http.Client) {
		client.Timeout = timeout
	}
}

// WithCookieJar() keeps the session cookie the controller hands out on
// login for the lifetime of the client.
func WithCookieJar() Option {
	return func(client *http.Client) {
		jar, err := cookiejar.New(nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create cookie jar")
			return
		}
		client.Jar = jar
	}
}

func WithInsecure(insecure bool) Option {
	return func(client *http.Client) {
		if t := tlsConfig(client); t != nil {
			t.InsecureSkipVerify = insecure
		}
	}
}

func WithCertPool(certPool *x509.CertPool) Option {
	// make sure we have a valid cert pool
	if certPool == nil {
		return func(client *http.Client) {}
	}
	return func(client *http.Client) {
		if t := tlsConfig(client); t != nil {
			t.RootCAs = certPool
		}
	}
}

// LoadCertPool() reads a PEM bundle into a new cert pool.
func LoadCertPool(certPath string) (*x509.CertPool, error) {
	cacert, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(cacert) {
		return nil, fmt.Errorf("no certificates found in %s", certPath)
	}
	return certPool, nil
}

func tlsConfig(client *http.Client) *tls.Config {
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		log.Warn().Any("transport", client.Transport).Msg("cannot set TLS options on a custom transport")
		return nil
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	return transport.TLSClientConfig
}
