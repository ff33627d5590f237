package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrWeakPassword is returned when a password fails the policy.
	ErrWeakPassword = errors.New("password must contain at least one letter and one digit")
	// ErrInvalidPin is returned for PINs that are not 4 to 6 digits.
	ErrInvalidPin = errors.New("pin must be 4 to 6 digits")
)

// letter and digit lookaheads need regexp2; the stdlib engine has no lookaround
var passwordPolicy = regexp2.MustCompile(`^(?=.*[A-Za-z])(?=.*\d).+$`, regexp2.None)

var pinPattern = regexp2.MustCompile(`^\d{4,6}$`, regexp2.None)

// ValidatePassword enforces minimum length and character classes.
func ValidatePassword(password string, minLength int) error {
	if len(password) < minLength {
		return fmt.Errorf("password must be at least %d characters", minLength)
	}
	ok, err := passwordPolicy.MatchString(password)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWeakPassword
	}
	return nil
}

// ValidatePin checks the PIN shape.
func ValidatePin(pin string) error {
	ok, err := pinPattern.MatchString(pin)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPin
	}
	return nil
}

// HashPassword returns a bcrypt digest.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// CheckPassword compares a password with its digest.
func CheckPassword(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// PinHasher derives deterministic PIN digests so PIN uniqueness can be
// enforced by a database index.
type PinHasher struct {
	key []byte
}

// NewPinHasher keys the digest with the token signing secret.
func NewPinHasher(secret string) *PinHasher {
	return &PinHasher{key: []byte("pin:" + secret)}
}

// Digest returns the hex HMAC-SHA256 of pin.
func (h *PinHasher) Digest(pin string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(pin))
	return hex.EncodeToString(mac.Sum(nil))
}
