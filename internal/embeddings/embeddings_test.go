package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFastEmbedEncoder_RejectsUnsupportedModel(t *testing.T) {
	_, err := NewFastEmbedEncoder(Config{Model: "not-a-real-model"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBatchKey_StableForSameInput(t *testing.T) {
	a := batchKey([]string{"hello", "world"})
	b := batchKey([]string{"hello", "world"})
	c := batchKey([]string{"hello", "there"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
