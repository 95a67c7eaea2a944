package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	data := []byte("identical content")

	assert.Equal(t, Fingerprint(data), Fingerprint(data))
	assert.Len(t, Fingerprint(data), 64)
}

func TestFingerprintSingleByteChange(t *testing.T) {
	a := Fingerprint([]byte("identical content"))
	b := Fingerprint([]byte("identical content!"))

	assert.NotEqual(t, a, b)
}

func TestFingerprintIgnoresNothingButBytes(t *testing.T) {
	// Same bytes from different "files" must match; that is the whole
	// point of content-based dedup.
	assert.Equal(t, Fingerprint([]byte("abc")), HashText("abc"))
}
