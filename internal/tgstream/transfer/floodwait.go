package transfer

import (
	"context"
	"time"
)

// RealFloodWaiter sleeps for the requested duration or until ctx is
// canceled, whichever comes first.
type RealFloodWaiter struct{}

func (RealFloodWaiter) Wait(ctx context.Context, seconds int) error {
	timer := time.NewTimer(time.Duration(seconds) * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
