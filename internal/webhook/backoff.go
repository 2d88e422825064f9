package webhook

import "time"

// BackoffSchedule computes the wait before retrying a failed delivery:
// exponential doubling from Base, capped at Max. Attempt is 1-based
// (attempt 1 just failed -> wait Base before attempt 2).
type BackoffSchedule struct {
	Base time.Duration
	Max  time.Duration
}

func (s BackoffSchedule) Delay(attempt int) time.Duration {
	base := s.Base
	if base <= 0 {
		base = time.Second
	}
	max := s.Max
	if max <= 0 {
		max = time.Minute
	}
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
