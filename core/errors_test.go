package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureError_Error(t *testing.T) {
	err := NewError(ErrInvalidArgument, "region has zero area")

	assert.Equal(t, "invalid-argument: region has zero area", err.Error())
}

func TestCaptureError_Details(t *testing.T) {
	err := Errorf(ErrNativeCallFailed, "BitBlt failed").
		WithDetail("call", "BitBlt").
		WithDetail("code", 6)

	assert.Contains(t, err.Error(), "call=BitBlt")
	assert.Contains(t, err.Error(), "code=6")
}

func TestCaptureError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(ErrDisplayUnavailable, cause, "unable to open display")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestKindOf(t *testing.T) {
	err := NewError(ErrShmUnavailable, "MIT-SHM extension not present")

	assert.Equal(t, ErrShmUnavailable, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("grab monitor 2: %w", NewError(ErrSessionClosed, "session is closed"))

	assert.Equal(t, ErrSessionClosed, KindOf(err))
	assert.True(t, IsKind(err, ErrSessionClosed))
	assert.False(t, IsKind(err, ErrEncoder))
}

func TestErrorsIs_KindMatch(t *testing.T) {
	err := Errorf(ErrUnsupportedDepth, "bits per pixel not implemented: 16")

	assert.True(t, errors.Is(err, &CaptureError{Kind: ErrUnsupportedDepth}))
	assert.False(t, errors.Is(err, &CaptureError{Kind: ErrEncoder}))
}

func TestErrorKind_Terminal(t *testing.T) {
	require.True(t, ErrDisplayUnavailable.Terminal())
	require.True(t, ErrSessionClosed.Terminal())
	require.True(t, ErrUnsupportedDepth.Terminal())
	require.True(t, ErrUnsupportedPlatform.Terminal())
	require.False(t, ErrNativeCallFailed.Terminal())
	require.False(t, ErrShmUnavailable.Terminal())
	require.False(t, ErrInvalidArgument.Terminal())
	require.False(t, ErrEncoder.Terminal())
}
