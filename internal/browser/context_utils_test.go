// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

const testKey ctxKey = "target"

func TestCombineContext(t *testing.T) {
	t.Run("inherits values from primary", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), testKey, "tab-1")
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(testKey))
		assert.NoError(t, combined.Err())
	})

	t.Run("canceled by primary", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		cancel1()
		assert.Eventually(t, func() bool { return combined.Err() != nil }, 100*time.Millisecond, 5*time.Millisecond)
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("canceled by secondary deadline", func(t *testing.T) {
		ctx1, cancel1 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel1()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel2()

		combined, cancel := CombineContext(ctx1, ctx2)
		defer cancel()

		<-combined.Done()
		assert.ErrorIs(t, ctx2.Err(), context.DeadlineExceeded)
		// The combined context is canceled, not expired, when ctx2 ends it.
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("keeps primary deadline", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		ctx1, cancel1 := context.WithDeadline(context.Background(), deadline)
		defer cancel1()

		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.True(t, got.Equal(deadline))
	})
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), testKey, "tab-1"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.Equal(t, "tab-1", detached.Value(testKey))
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, ok := detached.Deadline()
	assert.False(t, ok)
}
