// Package view owns the mutable application state of the race board:
// the loaded events, the current filter criteria, and the derived
// visible subset. All mutation funnels through the Synchronizer so
// that every observer sees a consistent snapshot.
package view

import (
	"context"
	"errors"
	"sync"

	"racecal/internal/filter"
	appLog "racecal/internal/log"
	"racecal/internal/metrics"
	"racecal/internal/model"
	"racecal/internal/source"
)

// State is the lifecycle state of the board session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// LoadFailedMessage is the fixed user-facing text shown when the
// events document could not be retrieved or decoded.
const LoadFailedMessage = "賽事資料載入失敗，請重新整理頁面再試一次。"

// EmptyNotice is shown in place of the list when no event matches the
// current criteria.
const EmptyNotice = "目前沒有符合條件的賽事。"

// Presenter receives the outputs of a recompute. Implementations do
// all rendering; the synchronizer never touches presentation itself.
type Presenter interface {
	RenderList(events []model.Event)
	RenderSummary(sum filter.Summary)
	RenderLoadFailure(message string)
}

// Loader retrieves the events document. Implemented by source.Fetcher.
type Loader interface {
	Load(ctx context.Context) (source.Snapshot, error)
}

// Synchronizer re-runs the filter/summarize/render pipeline whenever
// the criteria change or data is (re)loaded. Each recompute is atomic
// with respect to concurrent callers.
type Synchronizer struct {
	loader    Loader
	presenter Presenter

	mu          sync.Mutex
	state       State
	events      []model.Event
	filtered    []model.Event
	criteria    filter.Criteria
	locations   []string
	generatedAt string
}

func New(loader Loader, presenter Presenter) *Synchronizer {
	return &Synchronizer{
		loader:    loader,
		presenter: presenter,
		criteria:  filter.Default(),
	}
}

// Load performs the one-time initial retrieval. On failure the session
// ends up in StateLoadFailed with the fixed failure message rendered;
// there is no automatic retry.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized {
		s.mu.Unlock()
		return errors.New("events already loaded")
	}
	s.state = StateLoading
	s.mu.Unlock()

	snap, err := s.loader.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateLoadFailed
		metrics.ObserveLoad(false, 0)
		appLog.Error("initial events load failed", err)
		s.presenter.RenderLoadFailure(LoadFailedMessage)
		return err
	}

	s.seedLocked(snap)
	metrics.ObserveLoad(true, len(snap.Events))
	appLog.Info("events loaded",
		"count", len(snap.Events),
		"locations", len(s.locations),
		"generated_at", snap.GeneratedAt,
		"from_cache", snap.FromCache,
	)
	s.recomputeLocked()
	return nil
}

// Reload refreshes the event set of a Ready session, keeping the
// current criteria. A failed reload keeps the previous snapshot and
// never demotes the session to LoadFailed.
func (s *Synchronizer) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return errors.New("session is not ready")
	}
	s.mu.Unlock()

	snap, err := s.loader.Load(ctx)
	if err != nil {
		metrics.ObserveLoad(false, 0)
		appLog.Error("events reload failed; keeping previous snapshot", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedLocked(snap)
	metrics.ObserveLoad(true, len(snap.Events))
	appLog.Info("events reloaded", "count", len(snap.Events), "generated_at", snap.GeneratedAt)
	s.recomputeLocked()
	return nil
}

// Recompute reads the given control values into the criteria and runs
// the pipeline: filter, render list, render summary. After a load
// failure it re-renders the failure message instead.
func (s *Synchronizer) Recompute(c filter.Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	s.recomputeLocked()
}

// Reset restores the default (unrestricted) criteria and recomputes.
func (s *Synchronizer) Reset() {
	s.Recompute(filter.Default())
}

func (s *Synchronizer) seedLocked(snap source.Snapshot) {
	s.state = StateReady
	s.events = snap.Events
	s.filtered = snap.Events
	s.locations = model.DistinctLocations(snap.Events)
	s.generatedAt = snap.GeneratedAt
}

// recomputeLocked is the single mutation funnel: every visible output
// is rederived here, wholesale, before the lock is released.
func (s *Synchronizer) recomputeLocked() {
	if s.state == StateLoadFailed {
		s.presenter.RenderLoadFailure(LoadFailedMessage)
		return
	}

	s.filtered = filter.Apply(s.events, s.criteria)
	sum := filter.Summarize(s.events, s.filtered)

	s.presenter.RenderList(s.filtered)
	s.presenter.RenderSummary(sum)
	metrics.ObserveRecompute(sum)
}

// State returns the current lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Criteria returns a copy of the current criteria.
func (s *Synchronizer) Criteria() filter.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// Events returns a copy of the full loaded event set.
func (s *Synchronizer) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Filtered returns a copy of the currently visible subset.
func (s *Synchronizer) Filtered() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.filtered))
	copy(out, s.filtered)
	return out
}

// Locations returns the selector options derived at load time.
func (s *Synchronizer) Locations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.locations))
	copy(out, s.locations)
	return out
}

// GeneratedAt returns the feed's generation stamp, if present.
func (s *Synchronizer) GeneratedAt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generatedAt
}
