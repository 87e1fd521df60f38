// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromPrimary", func(t *testing.T) {
		primary := context.WithValue(context.Background(), key, "tab")
		secondary := context.WithValue(context.Background(), key, "other")

		ctx, cancel := CombineContext(primary, secondary)
		defer cancel()
		assert.Equal(t, "tab", ctx.Value(key))
		assert.NoError(t, ctx.Err())
	})

	t.Run("CancelledByPrimary", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		ctx, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("CancelledBySecondary", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		ctx, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		cancelSecondary()
		assert.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 5*time.Millisecond)
	})

	t.Run("SecondaryDeadline", func(t *testing.T) {
		secondary, cancelSecondary := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelSecondary()
		ctx, cancel := CombineContext(context.Background(), secondary)
		defer cancel()

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context outlived the secondary deadline")
		}
	})

	t.Run("CancelReleasesSecondary", func(t *testing.T) {
		secondary, cancelSecondary := context.WithCancel(context.Background())
		defer cancelSecondary()
		ctx, cancel := CombineContext(context.Background(), secondary)
		cancel()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
		assert.NoError(t, secondary.Err())
	})
}
