package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
)

const xpathPrefix = "xpath="

// Matcher checks documents for the presence of a selector
type Matcher struct{}

// NewMatcher creates a matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// IsXPath reports whether selector should be evaluated as XPath
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, xpathPrefix) || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

// ValidSelector reports whether selector compiles as CSS or, when IsXPath
// holds, as an XPath expression.
func ValidSelector(selector string) error {
	s := strings.TrimSpace(selector)
	if s == "" {
		return fmt.Errorf("selector required")
	}
	if IsXPath(s) {
		expr := strings.TrimPrefix(s, xpathPrefix)
		if _, err := xpath.Compile(expr); err != nil {
			return fmt.Errorf("invalid xpath %q: %w", expr, err)
		}
		return nil
	}
	if _, err := cascadia.ParseGroup(s); err != nil {
		return fmt.Errorf("invalid css selector %q: %w", s, err)
	}
	return nil
}

// Validate implements ValidSelector for callers holding a Matcher
func (m *Matcher) Validate(selector string) error {
	return ValidSelector(selector)
}

// Match decodes body and reports whether selector matches an element in it.
// The decoded document is returned either way.
func (m *Matcher) Match(body []byte, contentType, selector string) (string, bool, error) {
	doc, err := Decode(body, contentType)
	if err != nil {
		return "", false, err
	}

	found, err := m.Contains(doc, selector)
	if err != nil {
		return "", false, err
	}
	return doc, found, nil
}

// Contains reports whether selector matches an element in an HTML string
func (m *Matcher) Contains(htmlStr, selector string) (bool, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false, fmt.Errorf("selector required")
	}

	if IsXPath(selector) {
		return containsXPath(htmlStr, strings.TrimPrefix(selector, xpathPrefix))
	}
	return containsCSS(htmlStr, selector)
}

func containsCSS(htmlStr, selector string) (bool, error) {
	if err := ValidSelector(selector); err != nil {
		return false, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}
	return doc.Find(selector).Length() > 0, nil
}

func containsXPath(htmlStr, expr string) (bool, error) {
	doc, err := htmlquery.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return false, fmt.Errorf("parse html: %w", err)
	}

	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return false, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return len(nodes) > 0, nil
}
