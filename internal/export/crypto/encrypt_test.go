package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================================================
// ValidatePassword Tests
// =====================================================

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("valid-password-123"))
	assert.NoError(t, ValidatePassword(strings.Repeat("a", PasswordMinLength)))

	for _, pw := range []string{"", "abc", "1234567"} {
		t.Run(pw, func(t *testing.T) {
			err := ValidatePassword(pw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must be at least")
		})
	}
}

// =====================================================
// Encrypt / Decrypt Tests
// =====================================================

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	data := []byte(`{"blocks":[],"channels":[]}`)

	enc, err := EncryptArchive(data, "correct horse")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(enc))
	assert.False(t, bytes.Contains(enc, data))

	dec, err := DecryptArchive(enc, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, data, dec)
}

func TestEncryptArchive_FreshSaltAndNonce(t *testing.T) {
	a, err := EncryptArchive([]byte("same"), "password1")
	require.NoError(t, err)
	b, err := EncryptArchive([]byte("same"), "password1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptArchive_WeakPassword(t *testing.T) {
	_, err := EncryptArchive([]byte("x"), "short")
	assert.Error(t, err)
}

func TestDecryptArchive_WrongPassword(t *testing.T) {
	enc, err := EncryptArchive([]byte("secret"), "password1")
	require.NoError(t, err)

	_, err = DecryptArchive(enc, "password2")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestDecryptArchive_TamperedHeader(t *testing.T) {
	enc, err := EncryptArchive([]byte("secret"), "password1")
	require.NoError(t, err)

	// Flip a bit in the last salt byte; the header is authenticated.
	header, headerData, _, err := parseHeader(enc)
	require.NoError(t, err)
	require.Len(t, header.Salt, SaltLength)
	enc[len(headerData)-1] ^= 0x01

	_, err = DecryptArchive(enc, "password1")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestDecryptArchive_InvalidFormat(t *testing.T) {
	tests := map[string][]byte{
		"empty":     {},
		"bad magic": []byte("NOTANARCHIVE-----"),
		"truncated": []byte(headerMagic + "\x01"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecryptArchive(data, "password1")
			assert.ErrorIs(t, err, ErrInvalidArchive)
		})
	}
}

func TestHeader_RoundTrip(t *testing.T) {
	h := ArchiveHeader{
		Version:   1,
		Algorithm: algorithm,
		Time:      3,
		Memory:    1 << 16,
		Threads:   2,
		Nonce:     bytes.Repeat([]byte{7}, NonceLength),
		Salt:      bytes.Repeat([]byte{9}, SaltLength),
	}
	raw, err := serializeHeader(h)
	require.NoError(t, err)

	got, headerData, payload, err := parseHeader(append(raw, 'p'))
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, raw, headerData)
	assert.Equal(t, []byte("p"), payload)
}
