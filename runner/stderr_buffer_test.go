package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)

	_, _ = b.Write([]byte("abcd"))
	assert.Equal(t, "abcd", b.String())
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("efghij"))
	assert.Equal(t, "cdefghij", b.String())
	assert.True(t, b.Truncated())
	assert.Equal(t, int64(10), b.TotalBytes())

	n, err := b.Write([]byte(strings.Repeat("z", 20)))
	assert.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, strings.Repeat("z", 8), b.String())
}

func TestTailBuffer_DefaultSize(t *testing.T) {
	b := newTailBuffer(0)
	assert.Equal(t, defaultWorkerLogTailBytes, b.maxBytes)
}
