package cache

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/pagefetch/internal/shared/utils"
)

// Key identifies a cached response
type Key string

// Fingerprinter derives cache keys from a URL and its fetch options
type Fingerprinter struct {
	hasher *utils.Hasher
}

// NewFingerprinter creates a fingerprinter using the given hasher.
// A nil hasher falls back to SHA-256.
func NewFingerprinter(hasher *utils.Hasher) *Fingerprinter {
	if hasher == nil {
		hasher = utils.DefaultHasher()
	}
	return &Fingerprinter{hasher: hasher}
}

// Fingerprint hashes url together with options. Map keys are serialized in
// sorted order, so two option maps with the same contents always agree.
func (f *Fingerprinter) Fingerprint(url string, options map[string]any) (Key, error) {
	payload := map[string]any{
		"url":     url,
		"options": options,
	}

	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode fingerprint: %w", err)
	}

	return Key(f.hasher.Hash(data)), nil
}

// Fingerprint hashes url and options with the default hasher
func Fingerprint(url string, options map[string]any) (Key, error) {
	return defaultFingerprinter.Fingerprint(url, options)
}

var defaultFingerprinter = NewFingerprinter(nil)
