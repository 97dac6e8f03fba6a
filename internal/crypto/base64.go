package crypto

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Key cards, identity files and sealed secrets carry binary values as
// unpadded base64url.
var textEncoding = base64.RawURLEncoding

var stdToURL = strings.NewReplacer("+", "-", "/", "_")

// ToBase64URL encodes data in the text form used throughout peermail.
func ToBase64URL(data []byte) string {
	return textEncoding.EncodeToString(data)
}

// DecodeBase64 decodes the text form. Padding, surrounding whitespace and the
// standard alphabet are accepted so values pasted from other tools still parse.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	data, err := textEncoding.DecodeString(stdToURL.Replace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}
