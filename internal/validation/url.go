package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// OriginURLValidator checks configured origin URLs before a client is
// built from them.
type OriginURLValidator struct {
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

func NewOriginURLValidator() *OriginURLValidator {
	return &OriginURLValidator{MaxLength: 2048}
}

// ValidateAndNormalize validates an origin URL and returns the normalized
// version. A missing scheme defaults to https; plain http stays allowed
// because some federated servers never moved off it.
func (v *OriginURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("origin URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("origin URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'`") {
		return "", fmt.Errorf("origin URL contains invalid characters")
	}

	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		input = "https://" + input
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid origin URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("origin URL must use http or https")
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("origin URL must have a hostname")
	}
	if strings.Contains(parsedURL.Path, "..") {
		return "", fmt.Errorf("directory traversal patterns not allowed in origin URL")
	}

	// a trailing slash changes how API paths resolve against the origin
	parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/")

	return parsedURL.String(), nil
}
