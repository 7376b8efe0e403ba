package digestauth

import (
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceCounterSequence(t *testing.T) {
	counter := NewNonceCounter()

	for i := 1; i <= 12; i++ {
		assert.Equal(t, fmt.Sprintf("%08d", i), counter.Next())
	}
}

func TestNonceCounterZeroValue(t *testing.T) {
	var counter AtomicNonceCounter

	assert.Equal(t, "00000001", counter.Next())
	assert.Equal(t, "00000002", counter.Next())
}

func TestNonceCounterConcurrent(t *testing.T) {
	counter := NewNonceCounter()

	const workers = 16
	const perWorker = 250

	results := make(chan string, workers*perWorker)

	var wg sync.WaitGroup

	for range workers {
		wg.Go(func() {
			for range perWorker {
				results <- counter.Next()
			}
		})
	}

	wg.Wait()
	close(results)

	seen := map[string]bool{}

	for value := range results {
		require.False(t, seen[value], "duplicated nonce count %s", value)
		seen[value] = true
	}

	assert.Len(t, seen, workers*perWorker)
	assert.True(t, seen["00000001"])
	assert.True(t, seen[fmt.Sprintf("%08d", workers*perWorker)])
}

func TestDefaultNonceCounterIsShared(t *testing.T) {
	assert.Same(t, DefaultNonceCounter(), DefaultNonceCounter())
}

func TestFormatNonceCount(t *testing.T) {
	assert.Equal(t, "00000001", FormatNonceCount(1))
	assert.Equal(t, "00000042", FormatNonceCount(42))
	assert.Equal(t, "99999999", FormatNonceCount(99999999))
	assert.Equal(t, "100000000", FormatNonceCount(100000000))
}

func TestGenerateClientNonce(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-F0-9]{16}$`)
	seen := map[string]bool{}

	for range 100 {
		value := GenerateClientNonce(ClientNonceLength)
		require.Regexp(t, pattern, value)
		require.False(t, seen[value], "duplicated client nonce %s", value)
		seen[value] = true
	}

	assert.Len(t, GenerateClientNonce(4), 4)
	assert.Empty(t, GenerateClientNonce(0))
	assert.Empty(t, GenerateClientNonce(-1))
}
