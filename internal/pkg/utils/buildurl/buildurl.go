package buildurl

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Placeholders lists the tokens that are replaced with the version in a URL template.
// "{0}" keeps templates written for positional formatting working.
var Placeholders = []string{"{version}", "{0}", "%version"}

var (
	ErrEmptyVersion = errors.New("version must not be empty")
	ErrInvalidURL   = errors.New("invalid url")
)

// HasPlaceholder reports whether the template contains at least one version placeholder.
func HasPlaceholder(template string) bool {
	for _, p := range Placeholders {
		if strings.Contains(template, p) {
			return true
		}
	}
	return false
}

// Expand substitutes every placeholder in template with version and validates the result.
func Expand(template, version string) (string, error) {
	if strings.TrimSpace(version) == "" {
		return "", ErrEmptyVersion
	}
	escaped := url.PathEscape(version)
	expanded := template
	for _, p := range Placeholders {
		expanded = strings.ReplaceAll(expanded, p, escaped)
	}
	if _, err := Parse(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

// Parse parses rawURL and makes sure it is an absolute http(s) URL.
func Parse(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", ErrInvalidURL, u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// FileName returns the final path segment of rawURL, ignoring query and fragment.
func FileName(rawURL string) (string, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "." || name == ".." || name == "/" || name == "" {
		return "", fmt.Errorf("%w: no file name in %q", ErrInvalidURL, rawURL)
	}
	return name, nil
}

// Hostname returns the host of rawURL without the port.
func Hostname(rawURL string) (string, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
