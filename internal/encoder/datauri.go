// Package encoder converts page images to self-describing data URI tokens and back.
package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

var errMalformedDataURI = errors.New("malformed data URI")

// Encode returns data as a base64 data URI tagged with its MIME type.
func Encode(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// EncodePage encodes a page image.
func EncodePage(p domain.PageImage) string {
	return Encode(p.ContentType, p.Data)
}

// EncodePages encodes pages preserving order.
func EncodePages(pages []domain.PageImage) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = EncodePage(p)
	}
	return out
}

// Decode splits a base64 data URI into its MIME type and raw bytes.
// Providers that take separate media-type and payload fields use it.
func Decode(uri string) (contentType string, data []byte, err error) {
	contentType, payload, err := Payload(uri)
	if err != nil {
		return "", nil, err
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedDataURI, err)
	}
	return contentType, data, nil
}

// Payload returns the base64 portion of a data URI without decoding it.
func Payload(uri string) (contentType, b64 string, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", "", fmt.Errorf("%w: missing data: scheme", errMalformedDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("%w: missing payload separator", errMalformedDataURI)
	}
	contentType, ok = strings.CutSuffix(header, ";base64")
	if !ok || contentType == "" {
		return "", "", fmt.Errorf("%w: expected base64 media type", errMalformedDataURI)
	}
	return contentType, payload, nil
}
