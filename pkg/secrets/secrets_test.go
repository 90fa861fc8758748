package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret, err := GenerateSharedSecret()
	require.NoError(t, err)

	m, err := NewManagerFromSharedSecret(secret)
	require.NoError(t, err)

	plaintext := []byte(`{"worker_id":"abc","capacity":4}`)
	ciphertext, err := m.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := m.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	secretA, err := GenerateSharedSecret()
	require.NoError(t, err)
	secretB, err := GenerateSharedSecret()
	require.NoError(t, err)

	mA, err := NewManagerFromSharedSecret(secretA)
	require.NoError(t, err)
	mB, err := NewManagerFromSharedSecret(secretB)
	require.NoError(t, err)

	ciphertext, err := mA.Encrypt([]byte("hello"))
	require.NoError(t, err)

	_, err = mB.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestNewManagerRejectsShortKey(t *testing.T) {
	_, err := NewManager([]byte("too-short"))
	assert.Error(t, err)
}

func TestDecryptTruncatedCiphertextFails(t *testing.T) {
	secret, err := GenerateSharedSecret()
	require.NoError(t, err)
	m, err := NewManagerFromSharedSecret(secret)
	require.NoError(t, err)

	_, err = m.Decrypt([]byte("short"))
	assert.Error(t, err)
}
