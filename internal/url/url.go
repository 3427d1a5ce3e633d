package url

import (
	"fmt"
	"net/url"
	"strings"
)

// Sanitize() normalizes a controller URL: the scheme and host are
// lowercased, doubled and trailing slashes are removed from the path, and
// any query or fragment is dropped.
func Sanitize(uri string) (string, error) {
	parsedURI, err := url.ParseRequestURI(strings.TrimSpace(uri))
	if err != nil {
		return "", fmt.Errorf("failed to parse URI: %w", err)
	}
	if parsedURI.Host == "" {
		return "", fmt.Errorf("URI %q has no host", uri)
	}
	parsedURI.Scheme = strings.ToLower(parsedURI.Scheme)
	parsedURI.Host = strings.ToLower(parsedURI.Host)
	for strings.Contains(parsedURI.Path, "//") {
		parsedURI.Path = strings.ReplaceAll(parsedURI.Path, "//", "/")
	}
	parsedURI.Path = strings.TrimSuffix(parsedURI.Path, "/")
	parsedURI.RawPath = ""
	parsedURI.RawQuery = ""
	parsedURI.Fragment = ""
	return parsedURI.String(), nil
}
