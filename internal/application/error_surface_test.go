package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSurfaceStartsIdle(t *testing.T) {
	t.Parallel()

	surface := NewErrorSurface()
	assert.False(t, surface.HasError())
	assert.Empty(t, surface.Message())
}

func TestErrorSurfaceLastRaiseWinsThenAcknowledgeClears(t *testing.T) {
	t.Parallel()

	surface := NewErrorSurface()
	surface.Raise("bad creds")
	surface.Raise("also bad")

	assert.True(t, surface.HasError())
	assert.Equal(t, "also bad", surface.Message())

	surface.Acknowledge()

	assert.False(t, surface.HasError())
	assert.Empty(t, surface.Message())
	_, pending := surface.Pending()
	assert.False(t, pending)
}

func TestErrorSurfaceAcknowledgeWhileIdleIsNoop(t *testing.T) {
	t.Parallel()

	surface := NewErrorSurface()
	surface.Acknowledge()
	assert.False(t, surface.HasError())

	surface.Raise("invalid credentials")
	authErr, pending := surface.Pending()
	assert.True(t, pending)
	assert.Equal(t, "invalid credentials", authErr.Error())
}
