package users

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Encoding names how PasswordDigest values are stored.
type Encoding string

const (
	// EncodingMD5 is hex MD5, Apache FtpServer's default. Case-insensitive.
	EncodingMD5 Encoding = "md5"

	// EncodingBcrypt is a bcrypt hash ("$2a$...").
	EncodingBcrypt Encoding = "bcrypt"

	// EncodingClear stores the password itself.
	EncodingClear Encoding = "clear"
)

// Valid reports whether e is a known encoding.
func (e Encoding) Valid() bool {
	switch e {
	case EncodingMD5, EncodingBcrypt, EncodingClear:
		return true
	}
	return false
}

// Digest encodes password for storage in a credential file.
func Digest(e Encoding, password string) (string, error) {
	switch e {
	case EncodingMD5:
		sum := md5.Sum([]byte(password))
		return hex.EncodeToString(sum[:]), nil
	case EncodingBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case EncodingClear:
		return password, nil
	default:
		return "", fmt.Errorf("unknown password encoding %q", e)
	}
}

// matches compares a supplied password against a stored digest.
func (e Encoding) matches(digest, password string) bool {
	switch e {
	case EncodingMD5:
		sum := md5.Sum([]byte(password))
		want := strings.ToLower(digest)
		got := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
	case EncodingBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	case EncodingClear:
		return subtle.ConstantTimeCompare([]byte(digest), []byte(password)) == 1
	default:
		return false
	}
}
