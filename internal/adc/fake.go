package adc

import "sync"

// FakeSampler returns scripted percentages and records every call.
type FakeSampler struct {
	mu sync.Mutex

	// Values maps a channel to the percentage returned for it.
	Values map[Channel]int

	// SampleError, if set, will be returned by SamplePercentage.
	SampleError error

	calls []Channel
}

// NewFakeSampler creates a FakeSampler with the given values.
func NewFakeSampler(values map[Channel]int) *FakeSampler {
	return &FakeSampler{Values: values}
}

// SamplePercentage records ch and returns its scripted value.
func (f *FakeSampler) SamplePercentage(ch Channel) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ch)
	if f.SampleError != nil {
		return 0, f.SampleError
	}
	return f.Values[ch], nil
}

// Calls returns the channels sampled so far.
func (f *FakeSampler) Calls() []Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Channel(nil), f.calls...)
}
