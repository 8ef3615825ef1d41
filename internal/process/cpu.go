// Package process samples resource usage of the current process: cumulative CPU time and resident memory.
package process

import (
	"sync"
	"time"
)

// CPUSample is a cumulative process CPU time reading. User and System are in microseconds.
type CPUSample struct {
	User       int64
	System     int64
	ObservedAt time.Time
}

// PercentSinceLast returns the CPU utilization between two samples as a percentage of one core.
// CPU time is in microseconds and the wall-clock delta in milliseconds, hence the *1000.
// Equal timestamps yield +Inf or NaN; callers sample on a positive interval.
func PercentSinceLast(previous, current CPUSample) float64 {
	wallMs := float64(current.ObservedAt.Sub(previous.ObservedAt)) / float64(time.Millisecond)
	cpu := float64((current.System - previous.System) + (current.User - previous.User))
	return 100 * cpu / (wallMs * 1000)
}

// CPUReader returns cumulative user and system CPU time of the process in microseconds.
type CPUReader func() (user, system int64, err error)

// Sampler retains the last CPU sample and derives utilization from successive reads.
// Sample calls are serialized; the retained sample is replaced on every successful read.
type Sampler struct {
	mu   sync.Mutex
	read CPUReader
	nowF func() time.Time
	last CPUSample
}

// NewSampler returns a Sampler reading the current process via getrusage.
// The baseline is taken immediately so the first Sample covers the time since construction.
func NewSampler() *Sampler {
	return NewSamplerWith(ReadRusage, time.Now)
}

// NewSamplerWith returns a Sampler using the given reader and clock.
func NewSamplerWith(read CPUReader, now func() time.Time) *Sampler {
	s := &Sampler{read: read, nowF: now}
	if user, system, err := read(); err == nil {
		s.last = CPUSample{User: user, System: system, ObservedAt: now()}
	} else {
		s.last = CPUSample{ObservedAt: now()}
	}
	return s
}

// Sample reads the current CPU time, returns it together with the utilization since the
// retained sample, and makes it the new retained sample.
func (s *Sampler) Sample() (CPUSample, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, system, err := s.read()
	if err != nil {
		return CPUSample{}, 0, err
	}
	cur := CPUSample{User: user, System: system, ObservedAt: s.nowF()}
	pct := PercentSinceLast(s.last, cur)
	s.last = cur
	return cur, pct, nil
}

// Last returns the retained sample.
func (s *Sampler) Last() CPUSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
