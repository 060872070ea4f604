package sbt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const dataURIPrefix = "data:application/json,"

// Metadata is the token metadata stored in the token URI.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// EncodeMetadata returns m as a data URI with URI-component escaping.
func EncodeMetadata(m Metadata) (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return dataURIPrefix + strings.ReplaceAll(url.QueryEscape(string(raw)), "+", "%20"), nil
}

// DecodeMetadata parses a data URI produced by EncodeMetadata or any other
// data: URI carrying JSON. ok is false for other URI schemes.
func DecodeMetadata(uri string) (Metadata, bool) {
	if !strings.HasPrefix(uri, "data:") {
		return Metadata{}, false
	}
	_, payload, found := strings.Cut(uri, ",")
	if !found {
		return Metadata{}, false
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return Metadata{}, false
	}
	var m Metadata
	if err := json.Unmarshal([]byte(decoded), &m); err != nil {
		return Metadata{}, false
	}
	return m, true
}
