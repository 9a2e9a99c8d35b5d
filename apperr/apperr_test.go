package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := errors.New("quota exceeded")
	err := fmt.Errorf("summarize: %w", Provider("generate", base))

	assert.True(t, Is(err, KindProvider))
	assert.False(t, Is(err, KindDetector))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "summarize: generate: quota exceeded", err.Error())
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindPersistence, "op", nil))
	assert.Equal(t, KindUnknown, GetKind(errors.New("plain")))
}

func TestLockTimeoutMessage(t *testing.T) {
	err := LockTimeout("reconcile:leads", 5, errors.New("held by other"))
	assert.True(t, Is(err, KindLockTimeout))
	assert.Contains(t, err.Error(), "after 5 attempts")
	assert.Equal(t, "lock_timeout", GetKind(err).String())
}
