package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>t</title></head><body>
<div id="main"><p class="lead">hello</p></div>
</body></html>`

func TestContains(t *testing.T) {
	m := NewMatcher()

	tests := []struct {
		name     string
		selector string
		want     bool
	}{
		{"css id", "#main", true},
		{"css class", "div p.lead", true},
		{"css missing", "#sidebar", false},
		{"xpath absolute", "//div[@id='main']/p", true},
		{"xpath prefixed", "xpath=//p[@class='lead']", true},
		{"xpath grouped", "(//p)[1]", true},
		{"xpath missing", "//table", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Contains(page, tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsInvalidSelectors(t *testing.T) {
	m := NewMatcher()

	_, err := m.Contains(page, "div[")
	assert.Error(t, err)

	_, err = m.Contains(page, "//div[")
	assert.Error(t, err)

	_, err = m.Contains(page, "  ")
	assert.Error(t, err)
}

func TestValidSelector(t *testing.T) {
	tests := []struct {
		selector string
		valid    bool
	}{
		{"#content", true},
		{"div.item > a[href]", true},
		{"//div[@id='x']", true},
		{"xpath=//p[contains(., 'hi')]", true},
		{"(//li)[2]", true},
		{"div[", false},
		{"a:nth-child(", false},
		{"//div[@id=", false},
		{"xpath=//p[", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			err := ValidSelector(tt.selector)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestMatchDecodesDeclaredCharset(t *testing.T) {
	// "café" in ISO-8859-1
	body := []byte("<html><body><p id=\"x\">caf\xe9</p></body></html>")

	doc, found, err := NewMatcher().Match(body, "text/html; charset=iso-8859-1", "#x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, doc, "café")
}

func TestDecodeKeepsUTF8(t *testing.T) {
	body := []byte("<p>naïve</p>")

	doc, err := Decode(body, "")
	require.NoError(t, err)
	assert.Equal(t, "<p>naïve</p>", doc)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML(""))
	assert.True(t, IsHTML("text/html"))
	assert.True(t, IsHTML("text/html; charset=utf-8"))
	assert.True(t, IsHTML("application/xhtml+xml"))
	assert.False(t, IsHTML("application/json"))
	assert.False(t, IsHTML("image/png"))
}

func TestIsXPath(t *testing.T) {
	assert.True(t, IsXPath("//div"))
	assert.True(t, IsXPath("xpath=.//div"))
	assert.False(t, IsXPath("div > p"))
	assert.False(t, IsXPath("#id"))
}
