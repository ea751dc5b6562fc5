package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// MinPasswordLength counts characters, not bytes.
const MinPasswordLength = 8

// PasswordHasher turns passwords into stored hashes and checks them.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encodedHash string) bool
}

// argonParams are written into every hash, so changing the defaults does
// not invalidate stored passwords.
type argonParams struct {
	memory  uint32 // KiB
	passes  uint32
	threads uint8
}

// OWASP's m=19MiB, t=2, p=1 profile.
var defaultArgon = argonParams{memory: 19 * 1024, passes: 2, threads: 1}

const (
	saltBytes = 16
	keyBytes  = 32
)

var b64 = base64.RawStdEncoding

func (p argonParams) key(password string, salt []byte, n uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.passes, p.memory, p.threads, n)
}

// Argon2Hasher stores passwords as PHC strings:
// $argon2id$v=19$m=19456,t=2,p=1$<salt>$<key>
type Argon2Hasher struct{}

func (Argon2Hasher) HashPassword(password string) (string, error) { return HashPassword(password) }

func (Argon2Hasher) VerifyPassword(password, encodedHash string) bool {
	return VerifyPassword(password, encodedHash)
}

// HashPassword derives an argon2id key under a fresh random salt.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	p := defaultArgon
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.passes, p.threads,
		b64.EncodeToString(salt), b64.EncodeToString(p.key(password, salt, keyBytes))), nil
}

// VerifyPassword reports whether password produced encodedHash. Anything
// that is not a well-formed argon2id v19 string is rejected.
func VerifyPassword(password, encodedHash string) bool {
	fields := strings.Split(encodedHash, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return false
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return false
	}

	var p argonParams
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.threads); err != nil {
		return false
	}
	if p.passes == 0 || p.threads == 0 {
		return false
	}
	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return false
	}
	want, err := b64.DecodeString(fields[5])
	if err != nil || len(want) == 0 || len(want) > 2*keyBytes {
		return false
	}

	return subtle.ConstantTimeCompare(want, p.key(password, salt, uint32(len(want)))) == 1
}

// ValidatePasswordStrength returns ErrWeakPassword for passwords shorter
// than MinPasswordLength characters.
func ValidatePasswordStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// FakeInsecureHasher keeps passwords in clear text behind a "$fake$"
// prefix. Tests only.
type FakeInsecureHasher struct{}

func (FakeInsecureHasher) HashPassword(password string) (string, error) {
	return "$fake$" + password, nil
}

func (FakeInsecureHasher) VerifyPassword(password, encodedHash string) bool {
	return encodedHash == "$fake$"+password
}
