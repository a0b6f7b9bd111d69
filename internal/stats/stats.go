// Package stats keeps an in-process view of HTTP traffic for the admin panel.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Stats tracks request statistics with thread-safe access.
type Stats struct {
	mu sync.RWMutex

	inFlight      int64
	totalRequests int64
	serverErrors  int64
	clientErrors  int64
	totalBytes    int64

	// Ring buffer of recent latencies
	latencies  []time.Duration
	maxSamples int

	startTime time.Time
}

// Snapshot is a point-in-time view of the statistics.
type Snapshot struct {
	InFlight      int64
	TotalRequests int64
	ServerErrors  int64 // 5xx responses
	ClientErrors  int64 // 4xx responses
	TotalBytes    int64

	Last time.Duration // latest request
	Avg5 time.Duration // mean of the last 5 requests
	P50  time.Duration
	P90  time.Duration

	Uptime time.Duration
}

const defaultSamples = 100

func New() *Stats {
	return NewWithSamples(defaultSamples)
}

// NewWithSamples keeps the latest maxSamples latencies for percentiles.
func NewWithSamples(maxSamples int) *Stats {
	if maxSamples <= 0 {
		maxSamples = defaultSamples
	}
	return &Stats{
		latencies:  make([]time.Duration, 0, maxSamples),
		maxSamples: maxSamples,
		startTime:  time.Now(),
	}
}

// Begin marks a request as in flight.
func (s *Stats) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
}

// Done records a finished request started with Begin.
func (s *Stats) Done(status int, duration time.Duration, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight > 0 {
		s.inFlight--
	}
	s.totalRequests++
	if bytes > 0 {
		s.totalBytes += bytes
	}
	switch {
	case status >= 500:
		s.serverErrors++
	case status >= 400:
		s.clientErrors++
	}

	if len(s.latencies) >= s.maxSamples {
		copy(s.latencies, s.latencies[1:])
		s.latencies = s.latencies[:len(s.latencies)-1]
	}
	s.latencies = append(s.latencies, duration)
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		InFlight:      s.inFlight,
		TotalRequests: s.totalRequests,
		ServerErrors:  s.serverErrors,
		ClientErrors:  s.clientErrors,
		TotalBytes:    s.totalBytes,
		Uptime:        time.Since(s.startTime),
	}

	n := len(s.latencies)
	if n == 0 {
		return snap
	}

	snap.Last = s.latencies[n-1]

	count := min(5, n)
	var sum time.Duration
	for _, d := range s.latencies[n-count:] {
		sum += d
	}
	snap.Avg5 = sum / time.Duration(count)

	sorted := make([]time.Duration, n)
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	snap.P50 = sorted[n/2]
	snap.P90 = sorted[min(int(float64(n)*0.9), n-1)]

	return snap
}
