package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultBlockedSeedsNotEmpty(t *testing.T) {
	seeds := defaultBlockedSeeds()
	assert.NotEmpty(t, seeds)
	for _, s := range seeds {
		assert.NotEmpty(t, s.Pattern)
	}
}
