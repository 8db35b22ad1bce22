package kgqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectWithEmptyURLYieldsNoopNotifier(t *testing.T) {
	n := Connect("", "kgqueue.pending", nil)
	assert.NotNil(t, n)
	// Publish must not panic with no underlying connection.
	n.Publish(42)
	n.Close()
}

func TestConnectWithUnreachableURLDegradesGracefully(t *testing.T) {
	n := Connect("nats://127.0.0.1:1", "kgqueue.pending", nil)
	assert.NotNil(t, n)
	n.Publish(1)
	n.Close()
}
