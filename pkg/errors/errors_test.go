package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := New("TEST", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", base.Error())

	wrapped := base.WithInternal(errors.New("disk on fire"))
	require.Equal(t, "something failed: disk on fire", wrapped.Error())
	// The original must stay untouched.
	require.Nil(t, base.Internal)
}

func TestFromErrorUnwrapsAppErrors(t *testing.T) {
	appErr := New("SOME_CODE", "nope", http.StatusForbidden)
	chained := fmt.Errorf("handler: %w", appErr)

	got := FromError(chained)
	require.Equal(t, appErr.Code, got.Code)
	require.Equal(t, http.StatusForbidden, got.StatusCode)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, got.Code)
	require.EqualError(t, got.Internal, "boom")
}

func TestFromErrorNil(t *testing.T) {
	require.Nil(t, FromError(nil))
}
