package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	upperAlphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerAlphanumeric = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// RandomCode returns an n-character upper-case alphanumeric code (invite codes).
func RandomCode(n int) (string, error) {
	return randomFrom(upperAlphanumeric, n)
}

// RandomSuffix returns an n-character lower-case alphanumeric string (object names).
func RandomSuffix(n int) (string, error) {
	return randomFrom(lowerAlphanumeric, n)
}

// RandomToken returns a hex token built from n random bytes.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomFrom(alphabet string, n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
