package shaper

import (
	"math"
	"time"
)

// stats computes the summary warmup2.c's printStatics prints, reading
// only the output log (the emulation is finished by the time Run
// calls this, so no lock is needed).
func (e *Emulator) stats(end time.Time) *Stats {
	s := &Stats{
		TokensGenerated: e.tokenID,
		TokensDropped:   e.tokenDrops,
		TotalEmulationTime: end.Sub(e.start),
	}

	var totalInterArrival, totalService, totalSystem time.Duration
	var systemTimes []time.Duration

	for _, p := range e.output {
		totalInterArrival += p.realInterArrivalTime
		switch p.kind {
		case PacketServed:
			s.PacketsServed++
			svc := p.endService.Sub(p.beginService)
			totalService += svc
			sys := p.endService.Sub(p.arrive)
			totalSystem += sys
			systemTimes = append(systemTimes, sys)
		case PacketBucketOverflow:
			s.PacketsDropped++
		}
	}

	n := int64(len(e.output))
	if n > 0 {
		s.AvgInterArrival = totalInterArrival / time.Duration(n)
	}
	if s.PacketsServed > 0 {
		s.AvgServiceTime = totalService / time.Duration(s.PacketsServed)
		s.AvgSystemTime = totalSystem / time.Duration(s.PacketsServed)
		s.StdevSystemTime = stdev(systemTimes, s.AvgSystemTime)
	}
	return s
}

func stdev(samples []time.Duration, mean time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, d := range samples {
		diff := float64(d - mean)
		sumSq += diff * diff
	}
	variance := sumSq / float64(len(samples))
	return time.Duration(math.Sqrt(variance))
}
