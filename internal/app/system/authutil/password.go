// internal/app/system/authutil/password.go
package authutil

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters.
const (
	DefaultIterations = 100000
	MinIterations     = 10000
	SaltBytes         = 32
	DigestBytes       = 32

	// Algorithm is the prefix of an encoded PBKDF2 hash.
	Algorithm = "pbkdf2-sha256"
)

// PasswordHash is the stored form of a password: hex digest plus hex salt.
type PasswordHash struct {
	Digest     string
	Salt       string
	Iterations int
}

// Encode returns the single-field representation kept in the user record:
// pbkdf2-sha256$<iterations>$<salt hex>$<digest hex>
func (p PasswordHash) Encode() string {
	return Algorithm + "$" + strconv.Itoa(p.Iterations) + "$" + p.Salt + "$" + p.Digest
}

// ParsePasswordHash decodes the output of Encode. ok is false for anything
// that is not a well-formed PBKDF2 encoding.
func ParsePasswordHash(encoded string) (PasswordHash, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != Algorithm {
		return PasswordHash{}, false
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter < 1 {
		return PasswordHash{}, false
	}
	if !isHexLen(parts[2], SaltBytes) || !isHexLen(parts[3], DigestBytes) {
		return PasswordHash{}, false
	}
	return PasswordHash{Salt: parts[2], Digest: parts[3], Iterations: iter}, true
}

// Hasher derives and verifies PBKDF2-HMAC-SHA256 password hashes.
// The zero value is not usable; use NewHasher.
type Hasher struct {
	iterations int
}

// NewHasher returns a Hasher using the given iteration count. Values below
// MinIterations are raised to DefaultIterations.
func NewHasher(iterations int) *Hasher {
	if iterations < MinIterations {
		iterations = DefaultIterations
	}
	return &Hasher{iterations: iterations}
}

// Iterations reports the work factor used for new hashes.
func (h *Hasher) Iterations() int {
	return h.iterations
}

// Hash derives a hash with a fresh random salt.
// An error is returned only when the system entropy source fails.
func (h *Hasher) Hash(plaintext string) (PasswordHash, error) {
	salt := make([]byte, SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, fmt.Errorf("generate salt: %w", err)
	}
	return h.derive(plaintext, salt, h.iterations), nil
}

// HashWithSalt derives a hash using the supplied hex salt.
func (h *Hasher) HashWithSalt(plaintext, saltHex string) (PasswordHash, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return PasswordHash{}, fmt.Errorf("decode salt: %w", err)
	}
	return h.derive(plaintext, salt, h.iterations), nil
}

func (h *Hasher) derive(plaintext string, salt []byte, iterations int) PasswordHash {
	key := pbkdf2.Key([]byte(plaintext), salt, iterations, DigestBytes, sha256.New)
	return PasswordHash{
		Digest:     hex.EncodeToString(key),
		Salt:       hex.EncodeToString(salt),
		Iterations: iterations,
	}
}

// Verify re-derives the digest for plaintext with the given salt and compares
// it to digestHex in constant time. Malformed input yields false.
func (h *Hasher) Verify(plaintext, digestHex, saltHex string) bool {
	return h.verify(plaintext, digestHex, saltHex, h.iterations)
}

func (h *Hasher) verify(plaintext, digestHex, saltHex string, iterations int) bool {
	want, err := hex.DecodeString(digestHex)
	if err != nil || len(want) != DigestBytes {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(plaintext), salt, iterations, DigestBytes, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// VerifyEncoded checks plaintext against a stored hash in either the PBKDF2
// encoding or a legacy bcrypt hash.
func (h *Hasher) VerifyEncoded(plaintext, encoded string) bool {
	if isBcrypt(encoded) {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
	}
	p, ok := ParsePasswordHash(encoded)
	if !ok {
		return false
	}
	return h.verify(plaintext, p.Digest, p.Salt, p.Iterations)
}

// NeedsRehash reports whether a stored hash should be replaced with one
// produced by this Hasher.
func (h *Hasher) NeedsRehash(encoded string) bool {
	p, ok := ParsePasswordHash(encoded)
	if !ok {
		return true
	}
	return p.Iterations < h.iterations
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2")
}

func isHexLen(s string, n int) bool {
	if len(s) != 2*n {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
