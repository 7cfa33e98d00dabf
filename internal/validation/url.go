// Package validation checks user-supplied paths and URLs before they reach
// the filesystem, the bundler or an outgoing request.
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// Characters never legitimate in a configured URL.
var urlDangerous = []string{";", "|", "`", "$", "<", ">", "\"", "'", "\\"}

// ValidateURL requires an absolute http or https URL with a host and none
// of the characters that suggest injection.
func ValidateURL(rawURL string) error {
	for _, r := range rawURL {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("URL contains whitespace or control characters")
		}
	}
	for _, char := range urlDangerous {
		if strings.Contains(rawURL, char) {
			return fmt.Errorf("URL contains dangerous character: %s", char)
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme %q (only http/https allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a valid hostname")
	}
	return nil
}

// ValidateOrigin is ValidateURL restricted to scheme, host and port, the
// form browsers send in the Origin header.
func ValidateOrigin(origin string) error {
	if err := ValidateURL(origin); err != nil {
		return err
	}
	parsed, _ := url.Parse(origin)
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return fmt.Errorf("origin %q must not carry a path, query or credentials", origin)
	}
	return nil
}
