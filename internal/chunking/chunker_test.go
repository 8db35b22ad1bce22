package chunking

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordList(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	return strings.Join(words, " ")
}

func TestChunk_Empty(t *testing.T) {
	assert.Nil(t, Chunk(""))
	assert.Nil(t, Chunk("   "))
}

func TestChunk_SingleWindow(t *testing.T) {
	chunks := Chunk(wordList(100))
	require.Len(t, chunks, 1)
	assert.Equal(t, 100, len(strings.Fields(chunks[0])))
}

func TestChunk_OverlapBetweenWindows(t *testing.T) {
	chunks := Chunk(wordList(1000))
	require.True(t, len(chunks) >= 2)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	require.Len(t, first, WindowSize)

	overlap := WindowSize - WindowAdvance
	assert.Equal(t, first[WindowAdvance:], second[:overlap])
}

func TestChunk_LastWindowNotDroppedWhenShort(t *testing.T) {
	chunks := Chunk(wordList(460))
	require.True(t, len(chunks) >= 1)
	last := chunks[len(chunks)-1]
	assert.NotEmpty(t, last)
}
