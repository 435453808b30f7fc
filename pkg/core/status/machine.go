// Package status owns the per-filing stage state machine.
//
// Every status write goes through Machine, which serialises writes per filing
// so that concurrently finishing stages cannot lose each other's update.
package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"filing_valuation/pkg/models"

	"github.com/rs/zerolog"
)

var (
	// ErrFilingRemoved is returned for any outcome aimed at a removed filing.
	ErrFilingRemoved = errors.New("filing is removed")
	// ErrInvalidTransition is returned when an outcome would break the stage lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the persistence the machine needs.
type Store interface {
	FindFiling(ctx context.Context, documentID string) (models.Filing, error)
	UpdateStatus(ctx context.Context, documentID string, stage models.Stage, status models.StageStatus, note models.StageNote) error
	MarkRemoved(ctx context.Context, documentID string) error
}

// Outcome is the result of one stage run.
type Outcome struct {
	Stage      models.Stage
	Status     models.StageStatus
	Path       string
	Diagnostic string
}

// ValidateTransition checks one stage move.
//
//	NOT_STARTED -> DONE | ERROR
//	DONE        -> DONE | ERROR | PARTIAL
//	ERROR       -> DONE | ERROR
//	PARTIAL     -> DONE | ERROR | PARTIAL
//
// DONE and ERROR may be overwritten by a re-run; PARTIAL is reached only by
// demoting DONE and left only by a re-run.
func ValidateTransition(from, to models.StageStatus) error {
	switch to {
	case models.StatusDone, models.StatusError:
		return nil
	case models.StatusPartial:
		if from == models.StatusDone || from == models.StatusPartial {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Eligible reports whether a filing may enter the scrape stages.
func Eligible(f models.Filing) bool {
	return !f.Removed && f.Status.Decoded()
}

// Machine is the single mutator of filing status.
type Machine struct {
	store Store
	locks *keyedMutex
	log   zerolog.Logger
	now   func() time.Time
}

// NewMachine builds a Machine over store.
func NewMachine(store Store, log zerolog.Logger) *Machine {
	return &Machine{
		store: store,
		locks: newKeyedMutex(),
		log:   log.With().Str("component", "status").Logger(),
		now:   time.Now,
	}
}

// Apply records a stage outcome and returns the filing as stored afterwards.
func (m *Machine) Apply(ctx context.Context, documentID string, o Outcome) (models.Filing, error) {
	unlock := m.locks.Lock(documentID)
	defer unlock()

	f, err := m.store.FindFiling(ctx, documentID)
	if err != nil {
		return models.Filing{}, err
	}
	if f.Removed {
		return f, fmt.Errorf("%s: %w", documentID, ErrFilingRemoved)
	}

	from := f.Status.Get(o.Stage)
	if from == "" {
		return f, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, o.Stage)
	}
	if err := ValidateTransition(from, o.Status); err != nil {
		return f, fmt.Errorf("%s %s: %w", documentID, o.Stage, err)
	}

	note := models.StageNote{Path: o.Path, Diagnostic: o.Diagnostic, UpdatedAt: m.now()}
	if err := m.store.UpdateStatus(ctx, documentID, o.Stage, o.Status, note); err != nil {
		return f, fmt.Errorf("update status: %w", err)
	}

	m.log.Debug().
		Str("document_id", documentID).
		Str("stage", string(o.Stage)).
		Str("from", from.String()).
		Str("to", o.Status.String()).
		Msg("stage status updated")

	f.Status = f.Status.With(o.Stage, o.Status)
	if f.Notes == nil {
		f.Notes = make(map[models.Stage]models.StageNote)
	}
	f.Notes[o.Stage] = note
	return f, nil
}

// Demote moves a DONE stage to PARTIAL. Any other state is left alone and
// reported as changed=false.
func (m *Machine) Demote(ctx context.Context, documentID string, stage models.Stage, diagnostic string) (bool, error) {
	unlock := m.locks.Lock(documentID)
	defer unlock()

	f, err := m.store.FindFiling(ctx, documentID)
	if err != nil {
		return false, err
	}
	if f.Removed {
		return false, fmt.Errorf("%s: %w", documentID, ErrFilingRemoved)
	}
	if f.Status.Get(stage) != models.StatusDone {
		return false, nil
	}

	note := f.Note(stage)
	note.Diagnostic = diagnostic
	note.UpdatedAt = m.now()
	if err := m.store.UpdateStatus(ctx, documentID, stage, models.StatusPartial, note); err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}

	m.log.Warn().
		Str("document_id", documentID).
		Str("stage", string(stage)).
		Str("diagnostic", diagnostic).
		Msg("stage demoted to PARTIAL")
	return true, nil
}

// Remove marks a filing as permanently excluded.
func (m *Machine) Remove(ctx context.Context, documentID string) error {
	unlock := m.locks.Lock(documentID)
	defer unlock()

	if _, err := m.store.FindFiling(ctx, documentID); err != nil {
		return err
	}
	if err := m.store.MarkRemoved(ctx, documentID); err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}
	m.log.Info().Str("document_id", documentID).Msg("filing removed")
	return nil
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

// keyedMutex hands out one mutex per key and forgets it when nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
