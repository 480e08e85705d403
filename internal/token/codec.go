// Package token produces and verifies the signed admission token embedded in
// a ticket's QR code. A token proves authenticity on its own; it does not
// replace the state lookup done at scan time.
package token

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// Delimiter separates the four token fields. None of the signed fields may
// contain it.
const Delimiter = "|"

const fieldCount = 4

// Codec signs tokens with the first key and verifies against every key, so a
// key can be rotated without invalidating tokens issued under the previous
// one.
type Codec struct {
	signKey    []byte
	verifyKeys [][]byte
	now        func() time.Time
}

// NewCodec builds a codec from the active signing key and any number of
// retired keys that outstanding tokens may still carry signatures from.
func NewCodec(signingKey string, previousKeys ...string) (*Codec, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("token: signing key must not be empty")
	}
	keys := [][]byte{[]byte(signingKey)}
	for _, k := range previousKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	for _, k := range keys {
		if len(k) > blake2b.Size {
			return nil, fmt.Errorf("token: key longer than %d bytes", blake2b.Size)
		}
	}
	return &Codec{signKey: keys[0], verifyKeys: keys, now: time.Now}, nil
}

// Encode produces "{ticketID}|{serial}|{issuedAtTicks}|{base64Signature}".
// The signature is a keyed BLAKE2b-256 MAC over the first three fields
// joined by the delimiter.
func (c *Codec) Encode(ticketID, serial string) (string, error) {
	if strings.Contains(ticketID, Delimiter) || strings.Contains(serial, Delimiter) {
		return "", fmt.Errorf("token: field contains delimiter %q", Delimiter)
	}
	ticks := strconv.FormatInt(c.now().UTC().UnixNano(), 10)
	data := ticketID + Delimiter + serial + Delimiter + ticks
	sig, err := c.sign(c.signKey, data)
	if err != nil {
		return "", err
	}
	return data + Delimiter + sig, nil
}

// Decode splits a presented token, checks its signature in constant time and
// returns the embedded ticket id. It fails closed: any malformed input
// yields ok=false.
func (c *Codec) Decode(presented string) (ticketID string, ok bool) {
	parts := strings.Split(presented, Delimiter)
	if len(parts) != fieldCount {
		return "", false
	}
	if _, err := uuid.Parse(parts[0]); err != nil {
		return "", false
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", false
	}
	provided, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", false
	}

	data := parts[0] + Delimiter + parts[1] + Delimiter + parts[2]
	for _, key := range c.verifyKeys {
		expected, err := c.mac(key, data)
		if err != nil {
			return "", false
		}
		if subtle.ConstantTimeCompare(provided, expected) == 1 {
			return parts[0], true
		}
	}
	return "", false
}

func (c *Codec) sign(key []byte, data string) (string, error) {
	sum, err := c.mac(key, data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

func (c *Codec) mac(key []byte, data string) ([]byte, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(data))
	return h.Sum(nil), nil
}
