package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	slugLength   = 12
	slugAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var slugRegex = regexp.MustCompile(`^[A-Za-z0-9]{12}$`)

// GenerateSlug returns a random 12-character alphanumeric slug from crypto/rand.
func GenerateSlug() (string, error) {
	b := make([]byte, slugLength)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate slug: %w", err)
		}
		b[i] = slugAlphabet[n.Int64()]
	}
	return string(b), nil
}

// ValidSlug reports whether s has the shape of a generated slug.
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}
