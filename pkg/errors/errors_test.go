package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "nimbus-gateway/pkg/errors"
)

func TestErrorTypes(t *testing.T) {
	cause := stderrors.New("connection refused")

	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"network", appErrors.NewNetwork("fetch failed", cause), appErrors.IsNetwork},
		{"store read", appErrors.NewStoreRead("get failed", cause), appErrors.IsStoreRead},
		{"store write", appErrors.NewStoreWrite("put failed", cause), appErrors.IsStoreWrite},
		{"no fallback", appErrors.NewNoFallback("nothing available", cause), appErrors.IsNoFallback},
		{"validation", appErrors.NewValidation("bad url"), appErrors.IsValidation},
		{"internal", appErrors.NewInternal("boom", cause), appErrors.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(stderrors.New("plain")))
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("timeout")
	err := appErrors.NewNetwork("fetch failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesType(t *testing.T) {
	inner := appErrors.NewNetwork("fetch failed", stderrors.New("refused"))
	wrapped := appErrors.Wrap(inner, "serving /api/forecast")

	require.Error(t, wrapped)
	assert.True(t, appErrors.IsNetwork(wrapped))
	assert.Contains(t, wrapped.Error(), "serving /api/forecast")
}

func TestWrapPlainErrorBecomesInternal(t *testing.T) {
	wrapped := appErrors.Wrap(fmt.Errorf("plain"), "context")

	assert.True(t, appErrors.IsInternal(wrapped))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, appErrors.Wrap(nil, "context"))
}

func TestIsNoFallbackThroughWrapping(t *testing.T) {
	cause := appErrors.NewNetwork("fetch failed", stderrors.New("refused"))
	err := appErrors.NewNoFallback("no cached entry", cause)

	// The terminal error keeps its own type while still exposing the
	// network cause for errors.As/Is inspection.
	assert.True(t, appErrors.IsNoFallback(err))
}
