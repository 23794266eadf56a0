package scraper

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits decoded documents to 10MB
const MaxHTMLSize = 10 * 1024 * 1024

// DetectCharset detects the charset of raw HTML bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// IsHTML reports whether a content type denotes an HTML document.
// An empty content type is accepted.
func IsHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Decode converts an HTML body to a UTF-8 string. A charset declared in the
// content type wins; otherwise valid UTF-8 is used as is and anything else
// goes through charset detection.
func Decode(data []byte, contentType string) (string, error) {
	if len(data) > MaxHTMLSize {
		return "", fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}

	label := declaredCharset(contentType)
	if label == "" {
		if utf8.Valid(data) {
			return string(data), nil
		}
		label = DetectCharset(data)
	}

	reader, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+label)
	if err != nil {
		return string(data), nil
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode html: %w", err)
	}
	return string(decoded), nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
