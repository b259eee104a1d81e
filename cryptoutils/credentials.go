package cryptoutils

import (
	"crypto/rand"
	"fmt"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialPolicy bounds the pins and passwords accepted by the kernel.
type CredentialPolicy struct {
	MinPinLength       int `mapstructure:"min_pin_length"`
	MaxPinLength       int `mapstructure:"max_pin_length"`
	MinPasswordLength  int `mapstructure:"min_password_length"`
	MinPasswordClasses int `mapstructure:"min_password_classes"`
}

var DefaultCredentialPolicy = CredentialPolicy{
	MinPinLength:       4,
	MaxPinLength:       16,
	MinPasswordLength:  8,
	MinPasswordClasses: 2,
}

// EncryptionPin is the short numeric credential a user enters for every
// wallet operation.
type EncryptionPin struct{ Secret }

// NewEncryptionPin validates pin against the default policy.
func NewEncryptionPin(pin string) (EncryptionPin, error) {
	return DefaultCredentialPolicy.NewEncryptionPin(pin)
}

func (p CredentialPolicy) NewEncryptionPin(pin string) (EncryptionPin, error) {
	if pin == "" {
		return EncryptionPin{}, fmt.Errorf("pin: %w", ErrEmptyCredential)
	}
	if len(pin) < p.MinPinLength || (p.MaxPinLength > 0 && len(pin) > p.MaxPinLength) {
		return EncryptionPin{}, fmt.Errorf("%w: length must be between %d and %d digits", ErrInvalidPin, p.MinPinLength, p.MaxPinLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return EncryptionPin{}, fmt.Errorf("%w: only digits are allowed", ErrInvalidPin)
		}
	}
	return EncryptionPin{SecretFromString(pin)}, nil
}

// Equal compares two pins in constant time.
func (p EncryptionPin) Equal(other EncryptionPin) bool { return p.Secret.Equal(other.Secret) }

// PlainPassword is the user's wallet password in clear.
type PlainPassword struct{ Secret }

// NewPlainPassword validates password against the default policy.
func NewPlainPassword(password string) (PlainPassword, error) {
	return DefaultCredentialPolicy.NewPlainPassword(password)
}

func (p CredentialPolicy) NewPlainPassword(password string) (PlainPassword, error) {
	if password == "" {
		return PlainPassword{}, fmt.Errorf("password: %w", ErrEmptyCredential)
	}
	if len(password) < p.MinPasswordLength {
		return PlainPassword{}, fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, p.MinPasswordLength)
	}
	if classes := characterClasses(password); classes < p.MinPasswordClasses {
		return PlainPassword{}, fmt.Errorf("%w: at least %d character classes required, got %d", ErrWeakPassword, p.MinPasswordClasses, classes)
	}
	return PlainPassword{SecretFromString(password)}, nil
}

func (p PlainPassword) Equal(other PlainPassword) bool { return p.Secret.Equal(other.Secret) }

// characterClasses counts lower, upper, digit and symbol classes present in s.
func characterClasses(s string) int {
	var lower, upper, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, present := range []bool{lower, upper, digit, other} {
		if present {
			n++
		}
	}
	return n
}

// EncryptionSalt is the random salt fed to the key-derivation function.
type EncryptionSalt struct{ Secret }

// NewEncryptionSalt reads n random bytes.
func NewEncryptionSalt(n int) (EncryptionSalt, error) {
	if n <= 0 {
		return EncryptionSalt{}, fmt.Errorf("%w: salt length %d", ErrInvalidKDFParams, n)
	}
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return EncryptionSalt{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return EncryptionSalt{Secret(salt)}, nil
}

// EncryptionSaltFromBytes copies a stored salt.
func EncryptionSaltFromBytes(b []byte) EncryptionSalt {
	return EncryptionSalt{SecretFromBytes(b)}
}

// EncryptedPassword is a PlainPassword sealed under a pin-derived key:
// nonce || AES-GCM ciphertext.
type EncryptedPassword struct{ Secret }

// EncryptedPasswordFromBytes copies a stored encrypted password.
func EncryptedPasswordFromBytes(b []byte) EncryptedPassword {
	return EncryptedPassword{SecretFromBytes(b)}
}

// EncryptPassword wraps password so that it can later be recovered with pin alone.
func EncryptPassword(password PlainPassword, pin EncryptionPin, salt EncryptionSalt, params KDFParams) (EncryptedPassword, error) {
	key, err := DeriveKey(pin.Secret, salt, params)
	if err != nil {
		return EncryptedPassword{}, err
	}
	defer key.Zero()

	sealed, err := SealWithNonce(key, password.Reveal(), []byte(passwordAAD))
	if err != nil {
		return EncryptedPassword{}, err
	}
	return EncryptedPassword{Secret(sealed)}, nil
}

// Decrypt recovers the password; a wrong pin yields ErrDecryption.
func (e EncryptedPassword) Decrypt(pin EncryptionPin, salt EncryptionSalt, params KDFParams) (PlainPassword, error) {
	key, err := DeriveKey(pin.Secret, salt, params)
	if err != nil {
		return PlainPassword{}, err
	}
	defer key.Zero()

	plain, err := OpenWithNonce(key, e.Reveal(), []byte(passwordAAD))
	if err != nil {
		return PlainPassword{}, err
	}
	return PlainPassword{Secret(plain)}, nil
}

const passwordAAD = "wallet-kernel/password/v1"

// AccessToken is the bearer token issued by the wallet backend.
type AccessToken struct{ Secret }

func NewAccessToken(token string) (AccessToken, error) {
	if token == "" {
		return AccessToken{}, fmt.Errorf("access token: %w", ErrEmptyCredential)
	}
	return AccessToken{SecretFromString(token)}, nil
}

func (t AccessToken) Equal(other AccessToken) bool { return t.Secret.Equal(other.Secret) }

// ExpiresAt reads the exp claim without verifying the signature; the backend
// remains responsible for verification. ok is false for tokens without exp.
func (t AccessToken) ExpiresAt() (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(string(t.Reveal()), claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	date, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	return date.Time, true, nil
}

// Expired reports whether the token carries an exp claim that is before now.
// Opaque (non-JWT) tokens are never considered expired.
func (t AccessToken) Expired(now time.Time) bool {
	exp, ok, err := t.ExpiresAt()
	if err != nil || !ok {
		return false
	}
	return !now.Before(exp)
}
