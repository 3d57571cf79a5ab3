package common

import (
	"net/http"
	"sync/atomic"
)

// Stats counts API calls by outcome. The zero value is ready to use.
type Stats struct {
	total    atomic.Int64
	success  atomic.Int64
	notFound atomic.Int64
	failed   atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	NotFound int64 `json:"notFound"`
	Failed   int64 `json:"failed"`
}

// Record counts one completed call with the given status. A transport failure
// is recorded with status 0.
func (s *Stats) Record(status int) {
	s.total.Add(1)
	switch {
	case status == http.StatusNotFound:
		s.notFound.Add(1)
	case status >= 200 && status < 300:
		s.success.Add(1)
	default:
		s.failed.Add(1)
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Total:    s.total.Load(),
		Success:  s.success.Load(),
		NotFound: s.notFound.Load(),
		Failed:   s.failed.Load(),
	}
}
