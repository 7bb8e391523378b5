package services

import (
	"errors"
	"sync"
	"time"
)

// ErrTotalNotComputed is returned when a job has no published total yet.
// Callers must not treat it as a zero total.
var ErrTotalNotComputed = errors.New("job total has not been computed yet")

// PublishedTotal is the last accepted cost summary of a job.
type PublishedTotal struct {
	JobID       string      `json:"jobId"`
	Seq         uint64      `json:"seq"`
	Summary     CostSummary `json:"summary"`
	Warnings    []string    `json:"warnings,omitempty"`
	Flagged     bool        `json:"flagged"`
	PublishedAt time.Time   `json:"publishedAt"`
}

// GrandTotal is the payable amount of the published summary.
func (p PublishedTotal) GrandTotal() float64 {
	return p.Summary.PayableTotal()
}

// TotalReader is the read side used by the payment step.
type TotalReader interface {
	Read(jobID string) (PublishedTotal, bool)
	GrandTotal(jobID string) (float64, bool)
}

// TotalStore holds the most recent total per job. Publish must reject a
// total whose sequence is older than the one already stored.
type TotalStore interface {
	TotalReader
	Publish(total PublishedTotal) bool
	Subscribe(fn func(PublishedTotal))
	LastSeq() uint64
}

// MemoryTotalStore is an in-process TotalStore keyed by job id. It is safe
// for concurrent use.
//
// Subscribers are called one total at a time. A total that was overtaken
// by a newer one for the same job before its turn came is not delivered,
// so subscribers never see a job's sequence go backwards.
type MemoryTotalStore struct {
	mu          sync.RWMutex
	totals      map[string]PublishedTotal
	lastSeq     uint64
	subscribers []func(PublishedTotal)

	// notifyMu is held while subscribers run; mu is not.
	notifyMu sync.Mutex
}

// NewMemoryTotalStore returns an empty store.
func NewMemoryTotalStore() *MemoryTotalStore {
	return &MemoryTotalStore{totals: make(map[string]PublishedTotal)}
}

// Publish stores total unless a total with a newer sequence is already held
// for the job. Equal sequences overwrite. It reports whether the total was
// accepted; subscribers are only notified for accepted totals.
func (s *MemoryTotalStore) Publish(total PublishedTotal) bool {
	s.mu.Lock()
	if current, ok := s.totals[total.JobID]; ok && total.Seq < current.Seq {
		s.mu.Unlock()
		return false
	}
	s.totals[total.JobID] = total
	if total.Seq > s.lastSeq {
		s.lastSeq = total.Seq
	}
	s.mu.Unlock()

	s.notify(total)
	return true
}

func (s *MemoryTotalStore) notify(total PublishedTotal) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.RLock()
	current := s.totals[total.JobID]
	subscribers := make([]func(PublishedTotal), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.RUnlock()

	if current.Seq > total.Seq {
		return
	}
	for _, fn := range subscribers {
		fn(total)
	}
}

// Read returns the published total of a job; ok is false when no pass has
// ever been published for it.
func (s *MemoryTotalStore) Read(jobID string) (PublishedTotal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total, ok := s.totals[jobID]
	return total, ok
}

// GrandTotal returns the payable grand total of a job.
func (s *MemoryTotalStore) GrandTotal(jobID string) (float64, bool) {
	total, ok := s.Read(jobID)
	if !ok {
		return 0, false
	}
	return total.GrandTotal(), true
}

// Subscribe registers fn to be called after every accepted publish. fn must
// not call Publish.
func (s *MemoryTotalStore) Subscribe(fn func(PublishedTotal)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// LastSeq is the highest sequence accepted so far.
func (s *MemoryTotalStore) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// RequireGrandTotal reads the payable total of a job or fails with
// ErrTotalNotComputed.
func RequireGrandTotal(r TotalReader, jobID string) (PublishedTotal, error) {
	total, ok := r.Read(jobID)
	if !ok {
		return PublishedTotal{}, ErrTotalNotComputed
	}
	return total, nil
}
