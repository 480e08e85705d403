package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// serialCharset avoids 0/O and 1/I so serial numbers survive being read out
// loud at the gate.
const serialCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSerialSuffix returns the random tail of a ticket serial number.
func GenerateSerialSuffix(length int) (string, error) {
	code := make([]byte, length)

	if _, err := rand.Read(code); err != nil {
		return "", err
	}

	for i := 0; i < length; i++ {
		code[i] = serialCharset[int(code[i])%len(serialCharset)]
	}

	return string(code), nil
}
