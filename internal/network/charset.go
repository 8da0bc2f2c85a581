// File: internal/network/charset.go
package network

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isTextual reports whether a content type should go through charset
// decoding. An absent Content-Type is treated as textual; an unparseable
// one is not.
func isTextual(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	mt = strings.ToLower(mt)
	if strings.HasPrefix(mt, "text/") ||
		strings.HasSuffix(mt, "+xml") ||
		strings.HasSuffix(mt, "+json") {
		return true
	}
	switch mt {
	case "application/json", "application/xml",
		"application/javascript", "application/x-javascript", "application/ecmascript":
		return true
	}
	return false
}

// DecodeToUTF8 converts raw to UTF-8 using the charset named in contentType,
// falling back to byte-pattern detection when the header names none. Input
// that is already UTF-8, or whose charset cannot be determined, is returned
// unchanged.
func DecodeToUTF8(raw []byte, contentType string) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	name := charsetFromContentType(contentType)
	if name == "" {
		name = detectCharset(raw)
	}
	if name == "" || isUTF8Name(name) {
		return bytes.TrimPrefix(raw, utf8BOM), nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return raw, fmt.Errorf("unknown charset %q", name)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return raw, fmt.Errorf("decode %s: %w", name, err)
	}
	return decoded, nil
}

func charsetFromContentType(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

// detectCharset runs statistical detection. Guesses below 50% confidence
// are discarded.
func detectCharset(raw []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil || result.Confidence < 50 {
		return ""
	}
	return strings.ToLower(result.Charset)
}

func isUTF8Name(name string) bool {
	switch name {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}
