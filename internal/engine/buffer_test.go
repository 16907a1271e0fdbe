package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferTypeAndUserInput(t *testing.T) {
	var b ComposingBuffer

	for _, c := range []byte("nihao") {
		assert.True(t, b.Type(c))
	}
	assert.Equal(t, "nihao", b.UserInput())
	assert.Equal(t, 5, b.Len())
	assert.False(t, b.Empty())
}

func TestBufferRejectsNonPrintable(t *testing.T) {
	var b ComposingBuffer

	assert.False(t, b.Type(0x08))
	assert.False(t, b.Type(' '))
	assert.False(t, b.Type(0x7f))
	assert.False(t, b.Type(0xe4))
	assert.True(t, b.Empty())
}

func TestBufferBackspace(t *testing.T) {
	var b ComposingBuffer

	assert.False(t, b.Backspace())

	b.Type('a')
	b.Type('b')
	assert.True(t, b.Backspace())
	assert.Equal(t, "a", b.UserInput())
	assert.True(t, b.Backspace())
	assert.False(t, b.Backspace())
	assert.True(t, b.Empty())
}

func TestBufferClear(t *testing.T) {
	var b ComposingBuffer
	b.Type('x')
	b.Type('y')
	b.Clear()
	assert.True(t, b.Empty())
	assert.Equal(t, "", b.UserInput())
}
