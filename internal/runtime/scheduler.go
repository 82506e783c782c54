package runtime

import (
	"context"
	"time"

	"github.com/aretw0/flowrun/pkg/domain"
)

// run is one uninterrupted segment of processing: from Start or SubmitInput
// until the session suspends, completes or is invalidated.
type run struct {
	ctx  context.Context
	gen  uint64
	flow *domain.Flow
	stop context.CancelFunc
}

// pause waits for d. It returns early with the context error when the run is
// cancelled, which is how Reset stops a pending delay from appending anything.
func (r *run) pause(d time.Duration) error {
	if d <= 0 {
		return r.ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-r.ctx.Done():
		return r.ctx.Err()
	}
}
