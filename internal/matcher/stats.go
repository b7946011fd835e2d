package matcher

import "math"

// statWindows are the trailing-window sizes rolling statistics are
// computed over.
var statWindows = [4]int{5, 10, 50, 100}

const maxBufferSize = 100

// rollingStats is a circular buffer of recent fill prices plus the
// moving-average/standard-deviation pair for each window. Updated only on
// successful matches (never on limit placement or cancellation).
type rollingStats struct {
	buffer []int64 // append-until-full, then wraps
	tick   int64   // matcher-local match counter, indexes the wrap
}

func newRollingStats() rollingStats {
	return rollingStats{buffer: make([]int64, 0, maxBufferSize)}
}

func (s *rollingStats) update(priceCents int64) {
	if len(s.buffer) < maxBufferSize {
		s.buffer = append(s.buffer, priceCents)
	} else {
		s.buffer[s.tick%maxBufferSize] = priceCents
	}
	s.tick++
}

// Level1MarketData is the best bid/ask plus derived rolling statistics for
// an asset. Absent values (no resting orders, or no fill-price samples yet)
// are nil, not a sentinel, per spec §9 — except in the agent vectorization
// path, which maps nil to -1.0. A window with fewer samples than its size is
// computed over the samples available.
type Level1MarketData struct {
	BestBid *int64
	BestAsk *int64

	MovingAverage5       *float64
	StandardDeviation5   *float64
	MovingAverage10      *float64
	StandardDeviation10  *float64
	MovingAverage50      *float64
	StandardDeviation50  *float64
	MovingAverage100     *float64
	StandardDeviation100 *float64
}

func (s *rollingStats) level1() Level1MarketData {
	var data Level1MarketData
	mas := [4]**float64{&data.MovingAverage5, &data.MovingAverage10, &data.MovingAverage50, &data.MovingAverage100}
	sds := [4]**float64{&data.StandardDeviation5, &data.StandardDeviation10, &data.StandardDeviation50, &data.StandardDeviation100}

	// Once the buffer has wrapped, the oldest sample sits at tick%maxBufferSize;
	// rotate it into oldest-to-newest order before taking trailing windows.
	ordered := s.buffer
	if len(s.buffer) == maxBufferSize {
		start := int(s.tick % maxBufferSize)
		ordered = append(append(make([]int64, 0, maxBufferSize), s.buffer[start:]...), s.buffer[:start]...)
	}

	for i, ideal := range statWindows {
		window := ideal
		if window > len(ordered) {
			window = len(ordered)
		}
		if window == 0 {
			continue
		}
		samples := ordered[len(ordered)-window:]
		mean := meanOf(samples)
		sd := stdDevOf(samples, mean)
		*mas[i] = &mean
		*sds[i] = &sd
	}
	return data
}

func meanOf(samples []int64) float64 {
	var sum int64
	for _, v := range samples {
		sum += v
	}
	return float64(sum) / float64(len(samples))
}

// stdDevOf computes the population standard deviation (not sample) over
// samples, matching the original source's single-pass "whole window" stat.
func stdDevOf(samples []int64, mean float64) float64 {
	var sumSquares float64
	for _, v := range samples {
		d := float64(v) - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
