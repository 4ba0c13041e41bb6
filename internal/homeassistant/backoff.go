package homeassistant

import (
	"context"
	"math/rand"
	"time"
)

// maxDoublings bounds the schedule when Max is unset.
const maxDoublings = 30

// RetrySchedule spaces broker connect attempts. The pause doubles from Base
// after each failure and stops growing at Max. Jitter spreads each pause by up
// to that fraction of itself in either direction.
type RetrySchedule struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func DefaultRetrySchedule() RetrySchedule {
	return RetrySchedule{
		Base:   250 * time.Millisecond,
		Max:    5 * time.Second,
		Jitter: 0.5,
	}
}

// Delay returns the pause after failed attempt n (1-based). A nil rng
// disables jitter.
func (s RetrySchedule) Delay(n int, rng *rand.Rand) time.Duration {
	if s.Base <= 0 {
		return 0
	}
	d := s.Base
	for i := 1; i < n && i <= maxDoublings; i++ {
		if s.Max > 0 && d >= s.Max {
			break
		}
		d *= 2
	}
	if s.Max > 0 && d > s.Max {
		d = s.Max
	}
	if s.Jitter > 0 && rng != nil {
		spread := float64(d) * s.Jitter
		d += time.Duration((2*rng.Float64() - 1) * spread)
	}
	return d
}

func waitRetry(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
