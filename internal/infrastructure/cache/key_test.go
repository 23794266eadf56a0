package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagefetch/internal/shared/utils"
)

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	a := map[string]any{}
	a["timeout"] = 30000
	a["waitUntil"] = "load"
	a["selector"] = "#main"

	b := map[string]any{}
	b["selector"] = "#main"
	b["waitUntil"] = "load"
	b["timeout"] = 30000

	ka, err := Fingerprint("https://example.com", a)
	require.NoError(t, err)
	kb, err := Fingerprint("https://example.com", b)
	require.NoError(t, err)

	assert.Equal(t, ka, kb)
}

func TestFingerprintDistinguishesInputs(t *testing.T) {
	base := map[string]any{"selector": "#main", "raw": false}

	k1, err := Fingerprint("https://example.com/a", base)
	require.NoError(t, err)
	k2, err := Fingerprint("https://example.com/b", base)
	require.NoError(t, err)
	k3, err := Fingerprint("https://example.com/a", map[string]any{"selector": "#main", "raw": true})
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestFingerprintHasherSelection(t *testing.T) {
	opts := map[string]any{"selector": "#main"}

	sha, err := NewFingerprinter(utils.NewHasher(utils.SHA256)).Fingerprint("https://example.com", opts)
	require.NoError(t, err)
	blake, err := NewFingerprinter(utils.NewHasher(utils.BLAKE2b)).Fingerprint("https://example.com", opts)
	require.NoError(t, err)

	assert.Len(t, string(sha), 64)
	assert.Len(t, string(blake), 64)
	assert.NotEqual(t, sha, blake)
}
