package handeye

import (
	"sync"
	"time"
)

// ResultStore holds the latest poses and batch result for the HTTP endpoints.
type ResultStore struct {
	mu       sync.RWMutex
	a, b     PoseSequence
	batch    *BatchResult
	lastErr  error
	updated  time.Time
	running  bool
	jobCount int
}

// NewResultStore creates an empty store
func NewResultStore() *ResultStore {
	return &ResultStore{}
}

// SetPoses replaces the pose sequences the next results refer to.
func (s *ResultStore) SetPoses(a, b PoseSequence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a = append(PoseSequence(nil), a...)
	s.b = append(PoseSequence(nil), b...)
}

// Poses returns copies of the stored sequences.
func (s *ResultStore) Poses() (PoseSequence, PoseSequence) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(PoseSequence(nil), s.a...), append(PoseSequence(nil), s.b...)
}

// Update stores a finished batch together with the poses it was solved on.
func (s *ResultStore) Update(a, b PoseSequence, res *BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a = append(PoseSequence(nil), a...)
	s.b = append(PoseSequence(nil), b...)
	s.batch = res
	s.lastErr = nil
	s.updated = time.Now()
	s.jobCount++
}

// SetError records a job that failed before producing any result.
func (s *ResultStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// SetRunning marks whether a job is in progress.
func (s *ResultStore) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Batch returns the latest batch result, or nil.
func (s *ResultStore) Batch() *BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil
	}
	cp := *s.batch
	cp.Outcomes = append([]Outcome(nil), s.batch.Outcomes...)
	return &cp
}

// HasResults returns true once a batch has been stored
func (s *ResultStore) HasResults() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch != nil
}

// StoreStatus summarizes the store for the health endpoint.
type StoreStatus struct {
	HasResults bool      `json:"hasResults"`
	Running    bool      `json:"running"`
	Jobs       int       `json:"jobs"`
	PoseCount  int       `json:"poseCount"`
	Updated    time.Time `json:"updated,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}

// Status returns a snapshot of the store state.
func (s *ResultStore) Status() StoreStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := StoreStatus{
		HasResults: s.batch != nil,
		Running:    s.running,
		Jobs:       s.jobCount,
		PoseCount:  len(s.a),
		Updated:    s.updated,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
