package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserMessageByCategory(t *testing.T) {
	assert.Equal(t, "Please sign in to continue", UserMessage(ErrAuthentication, nil))
	assert.Equal(t, "Payment could not be processed. Please try again", UserMessage(ErrPayment, nil))

	// Unknown categories flatten to the generic system message
	assert.Equal(t, UserMessage(ErrSystem, nil), UserMessage("weird", nil))
}

func TestUserMessageSpecialCases(t *testing.T) {
	assert.Equal(t, "This record already exists",
		UserMessage(ErrDatabase, errors.New(`duplicate key value violates unique constraint "users_email_key"`)))
	assert.Equal(t, "Too many requests. Please wait a moment and try again",
		UserMessage(ErrNetwork, errors.New("429: rate limit exceeded")))

	// Internal details never leak through
	msg := UserMessage(ErrDatabase, errors.New("pq: connection refused on 10.0.0.5"))
	assert.NotContains(t, msg, "10.0.0.5")
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}
