// Package queue manages matchmaking queue entries: one per user actively
// searching for a match.
package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/metrics"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/storage"
)

// DefaultStaleAfter is how long a searching entry stays live without being
// consumed or removed by its owner.
const DefaultStaleAfter = 30 * time.Minute

// Repository is the queue entry repository.
//
// Entries whose owner has not polled within the staleness window are treated
// as abandoned: they are invisible to matching and to ActiveEntry, a new Join
// replaces them, and Sweep deletes them. Join and Touch count as polls.
type Repository struct {
	store      storage.QueueStore
	clock      clock.Clock
	staleAfter time.Duration
	events     *events.Emitter
	metrics    *metrics.Metrics
}

// NewRepository creates a Repository. A non-positive staleAfter means DefaultStaleAfter.
func NewRepository(store storage.QueueStore, clk clock.Clock, staleAfter time.Duration, emitter *events.Emitter, m *metrics.Metrics) *Repository {
	if clk == nil {
		clk = clock.Real{}
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Repository{
		store:      store,
		clock:      clk,
		staleAfter: staleAfter,
		events:     emitter,
		metrics:    m,
	}
}

// Cutoff is the last-seen time before which searching entries are stale.
func (r *Repository) Cutoff() time.Time {
	return r.clock.Now().Add(-r.staleAfter)
}

// NormalizePreferences validates prefs and fills defaults for optional fields.
func NormalizePreferences(prefs models.Preferences) (models.Preferences, error) {
	format, err := models.ParseFormat(string(prefs.Format))
	if err != nil {
		return prefs, errs.Validation("%v", err)
	}
	level, err := models.ParseSkillLevel(string(prefs.SkillLevel))
	if err != nil {
		return prefs, errs.Validation("%v", err)
	}
	dateRange, err := models.ParseDateRange(string(prefs.DateRange))
	if err != nil {
		return prefs, errs.Validation("%v", err)
	}
	prefs.Format = format
	prefs.SkillLevel = level
	prefs.DateRange = dateRange
	prefs.Zone = strings.TrimSpace(prefs.Zone)
	return prefs, nil
}

// Join puts userID in the queue. It fails with errs.ErrValidation if the user
// already has a live searching entry.
func (r *Repository) Join(ctx context.Context, userID string, prefs models.Preferences) (*models.QueueEntry, error) {
	if userID == "" {
		return nil, errs.Validation("user id is required")
	}
	prefs, err := NormalizePreferences(prefs)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	entry := &models.QueueEntry{
		UserID:     userID,
		Format:     prefs.Format,
		Zone:       prefs.Zone,
		SkillLevel: prefs.SkillLevel,
		DateRange:  prefs.DateRange,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := r.store.CreateQueueEntry(ctx, entry, r.Cutoff()); err != nil {
		return nil, err
	}

	slog.Info("Queue joined", "entry_id", entry.ID, "user_id", userID, "format", entry.Format, "zone", entry.Zone)
	r.metrics.QueueJoined(string(entry.Format))
	r.events.Emit(ctx, events.RKQueueJoined, events.QueueChanged{
		EntryID: entry.ID,
		UserID:  userID,
		Format:  string(entry.Format),
		At:      r.events.Now(),
	})
	return entry, nil
}

// Leave removes an entry. Leaving twice, or leaving an entry that was
// already consumed, is not an error.
func (r *Repository) Leave(ctx context.Context, entryID string) error {
	if err := r.store.DeleteQueueEntry(ctx, entryID); err != nil {
		return err
	}
	slog.Info("Queue left", "entry_id", entryID)
	r.metrics.QueueLeft()
	r.events.Emit(ctx, events.RKQueueLeft, events.QueueChanged{EntryID: entryID, At: r.events.Now()})
	return nil
}

// Get returns an entry by id, stale or not.
func (r *Repository) Get(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return r.store.GetQueueEntry(ctx, entryID)
}

// Touch marks a searching entry as seen now so it does not go stale while
// its owner keeps polling.
func (r *Repository) Touch(ctx context.Context, entryID string) error {
	return r.store.TouchQueueEntry(ctx, entryID, r.clock.Now().UTC())
}

// ActiveEntry returns the user's live searching entry, or nil.
func (r *Repository) ActiveEntry(ctx context.Context, userID string) (*models.QueueEntry, error) {
	return r.store.FindSearchingEntry(ctx, userID, r.Cutoff())
}

// Searching returns live searching entries for a format in store order.
func (r *Repository) Searching(ctx context.Context, format models.Format) ([]*models.QueueEntry, error) {
	return r.store.ListSearching(ctx, format, r.Cutoff())
}

// Stats counts live searching entries by format and skill level.
func (r *Repository) Stats(ctx context.Context) (models.QueueStats, error) {
	entries, err := r.store.ListSearching(ctx, "", r.Cutoff())
	if err != nil {
		return models.QueueStats{}, err
	}
	stats := models.NewQueueStats()
	for _, e := range entries {
		stats.Total++
		stats.ByFormat[e.Format]++
		stats.BySkillLevel[e.SkillLevel]++
	}
	return stats, nil
}

// Sweep deletes searching and cancelled entries not seen within the stale window
// and returns how many were removed.
func (r *Repository) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteStaleEntries(ctx, r.Cutoff())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Swept stale queue entries", "count", n)
	}
	return n, nil
}
