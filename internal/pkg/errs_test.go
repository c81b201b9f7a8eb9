package pkg

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationErrorIs(t *testing.T) {
	err := Invalid("title", "must not be empty")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "title: must not be empty", err.Error())

	wrapped := fmt.Errorf("create: %w", err)
	assert.True(t, errors.Is(wrapped, ErrValidation))

	var ve *ValidationError
	assert.True(t, errors.As(wrapped, &ve))
	assert.Equal(t, "title", ve.Field)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify("op", nil))
	assert.Equal(t, ErrNotFound, Classify("op", ErrNotFound))

	err := Classify("idea.find", errors.New("connection refused"))
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Contains(t, err.Error(), "idea.find")
	assert.Contains(t, err.Error(), "connection refused")

	// 已经是 UpstreamError 的不再重复包装
	again := Classify("outer", err)
	assert.Equal(t, err, again)
}

func TestIsDomain(t *testing.T) {
	assert.True(t, IsDomain(errors.Wrap(ErrAlreadyVoted, "vote")))
	assert.True(t, IsDomain(Invalid("x", "y")))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(Upstream("op", errors.New("boom"))))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "validation_error", ErrorCode(Invalid("f", "r")))
	assert.Equal(t, "already_voted", ErrorCode(errors.Wrap(ErrAlreadyVoted, "vote")))
	assert.Equal(t, "invalid_transition", ErrorCode(ErrInvalidTransition))
	assert.Equal(t, "upstream_error", ErrorCode(errors.New("db down")))
}
