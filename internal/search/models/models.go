package models

import (
	"fmt"
	"slices"
	"time"

	"scout/pkg/platform/sentinel"
)

// Status is a search lifecycle state. Transitions only move forward:
// pending -> in_progress -> completed | failed, and pending -> failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// FailureKind is the machine-readable reason attached to a failed search.
type FailureKind string

const (
	FailureUpstreamRejected    FailureKind = "upstream_rejected"
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureProviderErrored     FailureKind = "provider_errored"
	FailureTimeout             FailureKind = "timeout"
	FailureCancelled           FailureKind = "cancelled"
)

// Failure explains why a search ended in StatusFailed.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Search is one submitted search and its aggregate progress.
type Search struct {
	ID                   string     `json:"id"`
	Spec                 Spec       `json:"spec"`
	Status               Status     `json:"status"`
	ExternalJobRef       string     `json:"external_job_ref,omitempty"`
	TotalFound           int        `json:"total_found"`
	ProgressPercent      float64    `json:"progress_percent"`
	EstimatedSecondsLeft *int       `json:"estimated_seconds_left,omitempty"`
	Failure              *Failure   `json:"failure,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// NewSearch registers a pending search for an already normalized spec.
func NewSearch(id string, spec Spec, now time.Time) *Search {
	return &Search{
		ID:        id,
		Spec:      spec.Clone(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the search is completed or failed.
func (s *Search) IsTerminal() bool {
	return s.Status.IsTerminal()
}

func (s *Search) transition(next Status, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("search %s cannot move from %s to %s: %w", s.ID, s.Status, next, sentinel.ErrInvalidState)
	}
	s.Status = next
	s.UpdatedAt = now
	if next.IsTerminal() {
		done := now
		s.CompletedAt = &done
		s.EstimatedSecondsLeft = nil
	}
	return nil
}

// Start records the provider job and moves the search to in_progress.
func (s *Search) Start(jobRef string, now time.Time) error {
	if err := s.transition(StatusInProgress, now); err != nil {
		return err
	}
	s.ExternalJobRef = jobRef
	return nil
}

// Complete moves the search to completed with full progress.
func (s *Search) Complete(now time.Time) error {
	if err := s.transition(StatusCompleted, now); err != nil {
		return err
	}
	s.ProgressPercent = 100
	return nil
}

// Fail moves the search to failed. Progress is left where it was.
func (s *Search) Fail(kind FailureKind, message string, now time.Time) error {
	if err := s.transition(StatusFailed, now); err != nil {
		return err
	}
	s.Failure = &Failure{Kind: kind, Message: message}
	return nil
}

// RecordProgress applies a new observation of the found count and progress.
// Both values only ever move up; a lower observation is ignored. It reports
// whether anything changed.
func (s *Search) RecordProgress(found int, percent float64, secondsLeft *int, now time.Time) bool {
	if s.IsTerminal() {
		return false
	}
	changed := false
	if found > s.TotalFound {
		s.TotalFound = found
		changed = true
	}
	percent = min(max(percent, 0), 100)
	if percent > s.ProgressPercent {
		s.ProgressPercent = percent
		changed = true
	}
	if !equalIntPtr(s.EstimatedSecondsLeft, secondsLeft) {
		s.EstimatedSecondsLeft = cloneIntPtr(secondsLeft)
		changed = true
	}
	if changed {
		s.UpdatedAt = now
	}
	return changed
}

// Deadline is when the search times out if it is still running.
func (s *Search) Deadline(timeout time.Duration) time.Time {
	return s.CreatedAt.Add(timeout)
}

// Clone returns a deep copy.
func (s *Search) Clone() *Search {
	if s == nil {
		return nil
	}
	out := *s
	out.Spec = s.Spec.Clone()
	out.EstimatedSecondsLeft = cloneIntPtr(s.EstimatedSecondsLeft)
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clone returns a copy with its own slices.
func (s Spec) Clone() Spec {
	s.Criteria = slices.Clone(s.Criteria)
	s.ExcludeCriteria = slices.Clone(s.ExcludeCriteria)
	s.Enrichments = slices.Clone(s.Enrichments)
	return s
}
