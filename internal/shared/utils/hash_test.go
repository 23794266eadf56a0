package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher(t *testing.T) {
	tests := []struct {
		name      string
		algorithm HashAlgorithm
		input     string
		want      string
	}{
		{
			name:      "sha256 empty",
			algorithm: SHA256,
			input:     "",
			want:      "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name:      "sha256 abc",
			algorithm: SHA256,
			input:     "abc",
			want:      "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewHasher(tt.algorithm).HashString(tt.input))
		})
	}
}

func TestBlake2bDiffersFromSHA256(t *testing.T) {
	sha := NewHasher(SHA256).HashString("payload")
	blake := NewHasher(BLAKE2b).HashString("payload")

	assert.Len(t, blake, 64)
	assert.NotEqual(t, sha, blake)
	assert.Equal(t, blake, NewHasher(BLAKE2b).HashString("payload"))
}

func TestParseHashAlgorithm(t *testing.T) {
	algo, err := ParseHashAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, algo)

	algo, err = ParseHashAlgorithm(" BLAKE2B ")
	require.NoError(t, err)
	assert.Equal(t, BLAKE2b, algo)

	_, err = ParseHashAlgorithm("md5")
	assert.Error(t, err)
}
