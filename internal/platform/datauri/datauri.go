// Package datauri encodes and decodes base64 "data:" URIs as used for
// signatures and photo attachments.
package datauri

import (
	"encoding/base64"
	"errors"
	"strings"
)

var (
	ErrNotDataURI = errors.New("not a data URI")
	ErrNotBase64  = errors.New("data URI is not base64 encoded")
)

// Encode returns "data:<mime>;base64,<payload>".
func Encode(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Decode splits a base64 data URI into its media type and payload.
func Decode(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, ErrNotDataURI
	}
	header, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	mime, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return "", nil, ErrNotBase64
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, err
	}
	if mime == "" {
		mime = "text/plain"
	}
	return mime, data, nil
}

// DecodeBase64 accepts either a data URI or bare base64.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, data, err := Decode(s)
		return data, err
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
