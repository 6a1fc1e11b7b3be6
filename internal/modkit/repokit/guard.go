package repokit

import (
	"context"
	"fmt"
	"time"
)

type guarder interface {
	Guard(context.Context) error
}

// Guard runs st.Guard bounded by timeout when ctx has no deadline yet
func Guard(ctx context.Context, st guarder, timeout time.Duration) error {
	if st == nil {
		return fmt.Errorf("dependency guard: nil store")
	}
	if _, ok := ctx.Deadline(); !ok && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := st.Guard(ctx); err != nil {
		return fmt.Errorf("dependency guard failed: %w", err)
	}
	return nil
}
