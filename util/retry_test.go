package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Retry(t *testing.T) {
	var calls int
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("file is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	errLocked := errors.New("file is locked")
	err = Retry(3, time.Millisecond, func() error {
		calls++
		return errLocked
	})
	assert.ErrorIs(t, err, errLocked)
	assert.Equal(t, 3, calls)

	calls = 0
	_ = Retry(0, time.Millisecond, func() error {
		calls++
		return errLocked
	})
	assert.Equal(t, 1, calls)
}
