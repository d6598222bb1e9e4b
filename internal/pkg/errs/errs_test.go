package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestWrapKeepsCause(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	base := errors.New("connection reset")
	wrapped := Wrap(base, "insert reservation")

	assert.EqualError(t, wrapped, "insert reservation: connection reset")
	assert.True(t, Is(wrapped, base))
}

func TestMark(t *testing.T) {
	assert.Equal(t, errSentinel, Mark(nil, errSentinel))

	marked := Mark(errors.New("duplicate key"), errSentinel)
	assert.True(t, Is(marked, errSentinel))
	assert.Equal(t, "duplicate key", marked.Error())
}

func TestMarkNeedsPackageIs(t *testing.T) {
	marked := Mark(errors.New("duplicate key"), errSentinel)
	assert.False(t, errors.Is(marked, errSentinel))
	assert.True(t, Is(marked, errSentinel))

	// Wrapping keeps the cause reachable through the standard library.
	wrapped := Wrapf(errSentinel, "parse: %v", errors.New("bad input"))
	assert.True(t, errors.Is(wrapped, errSentinel))
}

func TestStackLines(t *testing.T) {
	assert.Nil(t, StackLines(nil, 3))

	lines := StackLines(New("boom"), 2)
	assert.LessOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "boom")
}
