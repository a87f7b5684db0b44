package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NotFound("toolkit_not_found", "toolkit %s not found", "abc")
	wrapped := fmt.Errorf("load toolkit: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrInvalidInput))
	assert.False(t, errors.Is(wrapped, ErrUnsupportedOperation))
}

func TestError_IsMatchesCodeWhenSet(t *testing.T) {
	err := NotFound("schedule_not_found", "missing")

	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "schedule_not_found"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "toolkit_not_found"}))
}

func TestError_Message(t *testing.T) {
	err := InvalidInput("invalid_date", "date %q is not YYYY-MM-DD", "2024/01/01")
	assert.Equal(t, `invalid_date: date "2024/01/01" is not YYYY-MM-DD`, err.Error())

	cause := errors.New("boom")
	cfg := InvalidConfiguration("registry_invalid", cause)
	assert.Equal(t, "registry_invalid: invalid configuration: boom", cfg.Error())
	assert.ErrorIs(t, cfg, cause)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "goal_levels_not_defined", CodeOf(fmt.Errorf("wrap: %w", NoLevels("g1"))))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.True(t, errors.Is(NoLevels("g1"), ErrNoLevelsDefined))
}
