package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const tripCodeLength = 6

// Ambiguous characters (0, O, 1, I) are left out so codes survive being
// read aloud or scribbled on paper.
const tripCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewTripCode returns a random shareable group code.
func NewTripCode() (string, error) {
	buf := make([]byte, tripCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate trip code: %w", err)
	}
	// 32 characters divide 256 evenly, so the modulo is unbiased.
	for i, b := range buf {
		buf[i] = tripCodeAlphabet[int(b)%len(tripCodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeTripCode maps user input onto the stored code form.
func NormalizeTripCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
