package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets through `keep` events out of every `window`.
// A zero window disables sampling.
type ratioSampler struct {
	ratio atomic.Uint64 // keep<<32 | window
	seen  atomic.Uint64
}

func newRatioSampler(keep, window int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(keep, window)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(keep, window int) {
	if keep <= 0 || window <= 0 {
		keep, window = 0, 0
	}
	if keep > window {
		keep = window
	}
	s.ratio.Store(uint64(keep)<<32 | uint64(window))
	s.seen.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	keep, window := r>>32, r&0xffffffff
	if window == 0 {
		return true
	}
	return (s.seen.Add(1)-1)%window < keep
}

// parseRatio accepts "n/d" or a bare "d" meaning 1/d.
// Anything unparsable or non-positive yields 0, 0.
func parseRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0
	}
	keepStr, windowStr, found := strings.Cut(raw, "/")
	if !found {
		keepStr, windowStr = "1", raw
	}
	keep, err := strconv.Atoi(strings.TrimSpace(keepStr))
	if err != nil {
		return 0, 0
	}
	window, err := strconv.Atoi(strings.TrimSpace(windowStr))
	if err != nil || keep <= 0 || window <= 0 {
		return 0, 0
	}
	return keep, window
}
