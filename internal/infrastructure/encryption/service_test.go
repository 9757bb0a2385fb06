package encryption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("shpat_access_token")
	require.NoError(t, err)
	require.NotContains(t, ciphertext, "shpat_access_token")

	plaintext, err := svc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "shpat_access_token", plaintext)
}

func TestNonceUniqueness(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	a, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := svc.Encrypt("same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTampering(t *testing.T) {
	svc, err := NewService(testKey)
	require.NoError(t, err)

	ciphertext, err := svc.Encrypt("secret")
	require.NoError(t, err)

	tampered := strings.ToLower(ciphertext)
	if tampered == ciphertext {
		tampered = strings.ToUpper(ciphertext)
	}
	_, err = svc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestNewServiceKeyValidation(t *testing.T) {
	_, err := NewService("not hex")
	assert.Error(t, err)

	_, err = NewService("abcd")
	assert.Error(t, err)
}
