// Package auth verifies API keys for the role-gated surfaces. Keys are
// never stored; configuration carries PBKDF2-SHA256 hashes and
// verification compares in constant time.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Role names the gated API surfaces: admin drives market creation,
// limits, funding and cancellation; odds drives price updates; results
// drives start and settlement.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOdds    Role = "odds"
	RoleResults Role = "results"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	digestLen        = 32
)

// HashKey derives a storable hash of an API key in the form
// "pbkdf2:sha256:<iterations>:<salt>:<digest>" with base64 raw encoding.
func HashKey(key string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(key), salt, pbkdf2Iterations, digestLen, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d:%s:%s",
		pbkdf2Iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest)), nil
}

// VerifyKey checks a presented key against a stored hash in constant
// time. Empty or malformed stored hashes never verify.
func VerifyKey(stored, presented string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return false
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(presented), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// Keyring holds the stored hash per role.
type Keyring struct {
	hashes map[Role]string
}

// NewKeyring builds a keyring from the configured hashes; an empty hash
// leaves that role without authentication (the middleware warns and
// passes through, matching a dev setup with no keys configured).
func NewKeyring(admin, odds, results string) *Keyring {
	return &Keyring{hashes: map[Role]string{
		RoleAdmin:   admin,
		RoleOdds:    odds,
		RoleResults: results,
	}}
}

// Enabled reports whether the role has a configured key hash.
func (k *Keyring) Enabled(role Role) bool { return k.hashes[role] != "" }

// Verify checks the presented key for the role. The admin key is
// accepted on every surface so operations staff can drive the narrower
// roles.
func (k *Keyring) Verify(role Role, presented string) bool {
	if VerifyKey(k.hashes[role], presented) {
		return true
	}
	if role != RoleAdmin && VerifyKey(k.hashes[RoleAdmin], presented) {
		return true
	}
	return false
}

// GenerateKey returns a fresh random API key, hex encoded.
func GenerateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
