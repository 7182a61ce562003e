// Package progress drives the per-suburb discovery lifecycle stored in
// scrape_progress.
package progress

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// ErrInvalidTransition is returned when a status change is not allowed from
// the suburb's current status.
var ErrInvalidTransition = eris.New("progress: invalid status transition")

// Store is the subset of store.Store the tracker needs.
type Store interface {
	GetSuburb(ctx context.Context, slug string) (*model.Suburb, error)
	UpdateSuburb(ctx context.Context, slug string, update model.SuburbUpdate) error
	CountSuburbRows(ctx context.Context, suburb, state string) (agencies, agents int, err error)
}

// CanTransition reports whether a suburb may move from one status to another.
//
//	pending|discovered|failed|complete -> in_progress
//	in_progress -> in_progress (stale run takeover)
//	in_progress -> discovered|failed
//	failed -> pending (manual retry)
//	anything but abandoned -> abandoned
func CanTransition(from, to model.ScrapeStatus) bool {
	if from == model.ScrapeStatusAbandoned {
		return false
	}
	switch to {
	case model.ScrapeStatusInProgress:
		return from.Valid()
	case model.ScrapeStatusDiscovered, model.ScrapeStatusFailed:
		return from == model.ScrapeStatusInProgress
	case model.ScrapeStatusPending:
		return from == model.ScrapeStatusFailed
	case model.ScrapeStatusAbandoned:
		return from.Valid()
	}
	return false
}

// Tracker records discovery lifecycle changes for suburbs.
type Tracker struct {
	store Store
	now   func() time.Time
}

// New creates a Tracker backed by s.
func New(s Store) *Tracker {
	return &Tracker{store: s, now: time.Now}
}

func (t *Tracker) check(sb *model.Suburb, to model.ScrapeStatus) error {
	if !CanTransition(sb.Status, to) {
		return eris.Wrapf(ErrInvalidTransition, "%s: %s -> %s", sb.Slug, sb.Status, to)
	}
	return nil
}

// Start moves the suburb to in_progress, stamps started_at and clears the
// previous error.
func (t *Tracker) Start(ctx context.Context, sb *model.Suburb) error {
	if err := t.check(sb, model.ScrapeStatusInProgress); err != nil {
		return err
	}
	if sb.Status == model.ScrapeStatusInProgress {
		zap.L().Warn("progress: taking over in-progress suburb",
			zap.String("suburb", sb.Slug),
			zap.Timep("started_at", sb.StartedAt),
		)
	}

	now := t.now().UTC()
	status := model.ScrapeStatusInProgress
	cleared := ""
	if err := t.store.UpdateSuburb(ctx, sb.Slug, model.SuburbUpdate{
		Status:       &status,
		StartedAt:    &now,
		ErrorMessage: &cleared,
	}); err != nil {
		return eris.Wrapf(err, "progress: start %s", sb.Slug)
	}
	sb.Status = status
	sb.StartedAt = &now
	sb.ErrorMessage = ""
	return nil
}

// Complete moves the suburb to discovered. The stored counts come from the
// rows actually present for the suburb.
func (t *Tracker) Complete(ctx context.Context, sb *model.Suburb) (agencies, agents int, err error) {
	if err := t.check(sb, model.ScrapeStatusDiscovered); err != nil {
		return 0, 0, err
	}
	agencies, agents, err = t.store.CountSuburbRows(ctx, sb.Name, sb.State)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "progress: count rows for %s", sb.Slug)
	}

	now := t.now().UTC()
	status := model.ScrapeStatusDiscovered
	if err := t.store.UpdateSuburb(ctx, sb.Slug, model.SuburbUpdate{
		Status:        &status,
		CompletedAt:   &now,
		AgenciesFound: &agencies,
		AgentsFound:   &agents,
	}); err != nil {
		return 0, 0, eris.Wrapf(err, "progress: complete %s", sb.Slug)
	}
	sb.Status = status
	sb.CompletedAt = &now
	sb.AgenciesFound = agencies
	sb.AgentsFound = agents
	return agencies, agents, nil
}

// Fail moves the suburb to failed with cause as the error message. Counts are
// refreshed from stored rows when possible and otherwise left untouched.
func (t *Tracker) Fail(ctx context.Context, sb *model.Suburb, cause error) error {
	if err := t.check(sb, model.ScrapeStatusFailed); err != nil {
		return err
	}

	now := t.now().UTC()
	status := model.ScrapeStatusFailed
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	update := model.SuburbUpdate{Status: &status, CompletedAt: &now, ErrorMessage: &msg}

	if agencies, agents, err := t.store.CountSuburbRows(ctx, sb.Name, sb.State); err != nil {
		zap.L().Warn("progress: recount after failure", zap.String("suburb", sb.Slug), zap.Error(err))
	} else {
		update.AgenciesFound = &agencies
		update.AgentsFound = &agents
	}

	if err := t.store.UpdateSuburb(ctx, sb.Slug, update); err != nil {
		return eris.Wrapf(err, "progress: fail %s", sb.Slug)
	}
	sb.Status = status
	sb.CompletedAt = &now
	sb.ErrorMessage = msg
	return nil
}

// Retry resets a failed suburb to pending and increments its retry count.
func (t *Tracker) Retry(ctx context.Context, slug string) (*model.Suburb, error) {
	return t.manual(ctx, slug, model.ScrapeStatusPending, true)
}

// Abandon marks a suburb as permanently skipped.
func (t *Tracker) Abandon(ctx context.Context, slug string) (*model.Suburb, error) {
	return t.manual(ctx, slug, model.ScrapeStatusAbandoned, false)
}

// ErrNotFound is returned by the manual transitions for unknown slugs.
var ErrNotFound = eris.New("progress: suburb not found")

func (t *Tracker) manual(ctx context.Context, slug string, to model.ScrapeStatus, retry bool) (*model.Suburb, error) {
	sb, err := t.store.GetSuburb(ctx, slug)
	if err != nil {
		return nil, eris.Wrapf(err, "progress: load %s", slug)
	}
	if sb == nil {
		return nil, eris.Wrapf(ErrNotFound, "%s", slug)
	}
	if err := t.check(sb, to); err != nil {
		return nil, err
	}

	update := model.SuburbUpdate{Status: &to, IncrementRetry: retry}
	if retry {
		cleared := ""
		update.ErrorMessage = &cleared
	}
	if err := t.store.UpdateSuburb(ctx, slug, update); err != nil {
		return nil, eris.Wrapf(err, "progress: %s %s", to, slug)
	}

	zap.L().Info("progress: manual transition",
		zap.String("suburb", slug),
		zap.String("from", string(sb.Status)),
		zap.String("to", string(to)),
	)
	sb.Status = to
	if retry {
		sb.RetryCount++
		sb.ErrorMessage = ""
	}
	return sb, nil
}
