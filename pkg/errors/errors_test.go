package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWrapsCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New("statestore", "CreateRun", cause)

	assert.Equal(t, "statestore: CreateRun: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))

	var ctxErr *ContextualError
	require.True(t, stderrors.As(err, &ctxErr))
	assert.Equal(t, "statestore", ctxErr.Component)
	assert.Equal(t, "CreateRun", ctxErr.Operation)
}

func TestNewfFormatsReason(t *testing.T) {
	err := Newf("engine", "New", "configuration has no %s", "scenarios")

	assert.Equal(t, "engine: New: configuration has no scenarios", err.Error())
	assert.Nil(t, err.Unwrap())
}
