// Package crypto derives the SQLCipher database key from the master key.
// The master key never touches disk; the database key is derived with
// HKDF-SHA256 and bound to the database name and a key version.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the size of the decoded MASTER_KEY in bytes.
	MasterKeySize = 32

	// DatabaseKeySize is the size of a derived SQLCipher key in bytes (256 bits).
	DatabaseKeySize = 32

	// CurrentKeyVersion is the key version used for new databases.
	CurrentKeyVersion = 1
)

// ErrInvalidMasterKey is returned when MASTER_KEY is not 64 hex characters.
var ErrInvalidMasterKey = errors.New("master key must be 64 hex characters")

// ParseMasterKey decodes a hex master key.
func ParseMasterKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if len(hexKey) != MasterKeySize*2 {
		return nil, ErrInvalidMasterKey
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMasterKey, err)
	}
	return key, nil
}

// DeriveDatabaseKey derives the SQLCipher key for the named database.
// info = "db:" + name + ":v" + version, so rotating the version or renaming
// the database yields an unrelated key.
func DeriveDatabaseKey(masterKey []byte, name string, version int) []byte {
	info := fmt.Sprintf("db:%s:v%d", name, version)

	// Salt is nil: the master key is already uniformly random.
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, DatabaseKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		// HKDF-SHA256 can emit up to 8160 bytes; 32 never fails.
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}
