// Package crypto provides backup archive encryption using AES-256-GCM with
// an argon2id-derived key. Passwords are never stored with the archive.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidPassword is returned when the provided password is incorrect.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidArchive is returned when the archive format is invalid.
	ErrInvalidArchive = errors.New("invalid archive format")
)

const (
	// PasswordMinLength is the minimum required password length.
	PasswordMinLength = 8
	// SaltLength is the length of the random salt for key derivation.
	SaltLength = 32
	// NonceLength is the GCM standard nonce size.
	NonceLength = 12

	algorithm   = "AES-256-GCM/ARGON2ID"
	headerMagic = "STASHENC"
)

// argon2id parameters, stored in the header so they can change later.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	keyLength    uint32 = 32
)

// ArchiveHeader represents the header of an encrypted archive. It carries
// only what decryption needs besides the password.
type ArchiveHeader struct {
	Version   uint8
	Algorithm string
	Time      uint32
	Memory    uint32
	Threads   uint8
	Nonce     []byte
	Salt      []byte
}

// IsEncrypted reports whether data starts with the encrypted archive magic.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(headerMagic))
}

// EncryptArchive encrypts archive data using the provided password. The
// result is the serialized header followed by the GCM ciphertext.
func EncryptArchive(data []byte, password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := ArchiveHeader{
		Version:   1,
		Algorithm: algorithm,
		Time:      argonTime,
		Memory:    argonMemory,
		Threads:   argonThreads,
		Nonce:     nonce,
		Salt:      salt,
	}

	gcm, err := newGCM(deriveKey(password, header))
	if err != nil {
		return nil, err
	}

	headerData, err := serializeHeader(header)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize header: %w", err)
	}

	// The header is authenticated as additional data.
	return gcm.Seal(headerData, nonce, data, headerData), nil
}

// DecryptArchive decrypts archive data using the provided password.
// A wrong password and a tampered archive both yield ErrInvalidPassword.
func DecryptArchive(encryptedData []byte, password string) ([]byte, error) {
	header, headerData, payload, err := parseHeader(encryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if header.Version != 1 {
		return nil, fmt.Errorf("%w: unsupported archive version %d", ErrInvalidArchive, header.Version)
	}
	if header.Algorithm != algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidArchive, header.Algorithm)
	}
	if len(header.Nonce) != NonceLength {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrInvalidArchive, len(header.Nonce))
	}

	gcm, err := newGCM(deriveKey(password, header))
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, header.Nonce, payload, headerData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// deriveKey derives a 32-byte key with argon2id using the header parameters.
func deriveKey(password string, h ArchiveHeader) []byte {
	return argon2.IDKey([]byte(password), h.Salt, h.Time, h.Memory, h.Threads, keyLength)
}

// =====================================================
// Header Serialization
// =====================================================

// serializeHeader writes:
// magic | version | algLen alg | time(4) | memory(4) | threads | nonceLen nonce | saltLen salt
func serializeHeader(h ArchiveHeader) ([]byte, error) {
	if len(h.Algorithm) > 255 || len(h.Nonce) > 255 || len(h.Salt) > 255 {
		return nil, errors.New("header field too long")
	}

	var buf bytes.Buffer
	buf.WriteString(headerMagic)
	buf.WriteByte(h.Version)
	buf.WriteByte(byte(len(h.Algorithm)))
	buf.WriteString(h.Algorithm)
	buf.Write(be32(h.Time))
	buf.Write(be32(h.Memory))
	buf.WriteByte(h.Threads)
	buf.WriteByte(byte(len(h.Nonce)))
	buf.Write(h.Nonce)
	buf.WriteByte(byte(len(h.Salt)))
	buf.Write(h.Salt)
	return buf.Bytes(), nil
}

// parseHeader returns the header, its raw bytes and the remaining payload.
func parseHeader(data []byte) (ArchiveHeader, []byte, []byte, error) {
	var h ArchiveHeader
	r := bytes.NewReader(data)

	magic := make([]byte, len(headerMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return h, nil, nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if string(magic) != headerMagic {
		return h, nil, nil, fmt.Errorf("invalid magic number")
	}

	var err error
	if h.Version, err = r.ReadByte(); err != nil {
		return h, nil, nil, fmt.Errorf("failed to read version: %w", err)
	}
	alg, err := readShort(r)
	if err != nil {
		return h, nil, nil, fmt.Errorf("failed to read algorithm: %w", err)
	}
	h.Algorithm = string(alg)

	fixed := make([]byte, 9)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return h, nil, nil, fmt.Errorf("failed to read key parameters: %w", err)
	}
	h.Time = u32(fixed[0:4])
	h.Memory = u32(fixed[4:8])
	h.Threads = fixed[8]

	if h.Nonce, err = readShort(r); err != nil {
		return h, nil, nil, fmt.Errorf("failed to read nonce: %w", err)
	}
	if h.Salt, err = readShort(r); err != nil {
		return h, nil, nil, fmt.Errorf("failed to read salt: %w", err)
	}

	headerSize := len(data) - r.Len()
	return h, data[:headerSize], data[headerSize:], nil
}

// readShort reads a 1-byte length followed by that many bytes.
func readShort(r *bytes.Reader) ([]byte, error) {
	n, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func u32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ValidatePassword checks if a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters", PasswordMinLength)
	}
	return nil
}
