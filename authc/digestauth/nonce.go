package digestauth

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync/atomic"
)

// ClientNonceLength is the number of characters of the generated client nonce.
const ClientNonceLength = 16

const (
	clientNonceAlphabet = "ABCDEF0123456789"
	nonceCountWidth     = 8
)

// NonceCounter produces the nc value of the digest response.
// Values must strictly increase and never repeat for the lifetime of the counter.
type NonceCounter interface {
	Next() string
}

// AtomicNonceCounter is a NonceCounter that is safe for concurrent use.
// The zero value starts counting at 1.
type AtomicNonceCounter struct {
	used atomic.Uint64
}

var _ NonceCounter = (*AtomicNonceCounter)(nil)

var defaultNonceCounter = &AtomicNonceCounter{}

// NewNonceCounter creates a new AtomicNonceCounter instance.
func NewNonceCounter() *AtomicNonceCounter {
	return &AtomicNonceCounter{}
}

// DefaultNonceCounter returns the counter shared by every client of the process.
func DefaultNonceCounter() *AtomicNonceCounter {
	return defaultNonceCounter
}

// Next returns the current count and advances the counter.
// The first value is 00000001.
func (c *AtomicNonceCounter) Next() string {
	return FormatNonceCount(c.used.Add(1))
}

// FormatNonceCount formats the counter value as an 8-digit zero-padded decimal string.
func FormatNonceCount(value uint64) string {
	result := strconv.FormatUint(value, 10)

	if len(result) >= nonceCountWidth {
		return result
	}

	return strings.Repeat("0", nonceCountWidth-len(result)) + result
}

// GenerateClientNonce generates a random string of uppercase hex digits.
// The client nonce is an anti-replay token, not a secret.
func GenerateClientNonce(length int) string {
	if length <= 0 {
		return ""
	}

	buf := make([]byte, length)

	for i := range buf {
		buf[i] = clientNonceAlphabet[rand.IntN(len(clientNonceAlphabet))] //nolint:gosec
	}

	return string(buf)
}
