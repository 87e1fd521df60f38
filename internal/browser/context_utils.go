// internal/browser/context_utils.go
package browser

import "context"

// CombineContext derives from primary, which carries the CDP target, and is also canceled
// when secondary is. Values come from primary only.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
