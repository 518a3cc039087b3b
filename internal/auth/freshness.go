package auth

import "time"

// Fresh reports whether a client timestamp claim, in unix seconds, lies
// within tolerance of now. Skew in either direction counts and the window
// boundary is inclusive, so a claim exactly tolerance old still passes.
func Fresh(claim int64, now time.Time, tolerance time.Duration) bool {
	drift := now.Unix() - claim
	if drift < 0 {
		drift = -drift
	}
	return drift <= int64(tolerance/time.Second)
}
