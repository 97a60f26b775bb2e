// Package matchmaking groups queued players into matches.
//
// Every queued client polls independently; nothing coordinates them except
// the store. An Engine therefore commits a formation as one transaction that
// consumes each selected queue entry with a compare-and-swap on its version.
// Two clients racing over overlapping candidates cannot both commit: the loser
// gets errs.ErrConflict, re-reads the queue and tries again.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/picadito/internal/chat"
	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/metrics"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/queue"
	"github.com/mmynk/picadito/internal/storage"
)

const (
	// AutoHostName is shown as the host of auto-formed matches.
	AutoHostName = "Solo Queue"
	// AutoKickoff is the default start time of an auto-formed match.
	AutoKickoff = "18:00"
	// AutoDurationMinutes is the default length of an auto-formed match.
	AutoDurationMinutes = 90
	// DefaultMaxAttempts bounds how often one TryFormMatch call retries after a conflict.
	DefaultMaxAttempts = 3
)

// Store is what the engine needs from persistence.
type Store interface {
	storage.FormationStore
}

// Formation is a successful formation attempt.
type Formation struct {
	Match *models.Match

	// Consumed is false when the requester's entry had already been consumed
	// by another client and Match is the match it was placed in.
	Consumed bool

	// Notice is the outcome of the announcement in the new match's chat.
	Notice chat.Notice
}

// Engine is the group formation engine.
type Engine struct {
	queue       *queue.Repository
	matcher     *Matcher
	store       Store
	notifier    *chat.Notifier
	events      *events.Emitter
	metrics     *metrics.Metrics
	clock       clock.Clock
	maxAttempts int
	tracer      trace.Tracer
}

// Config carries the engine's optional collaborators.
type Config struct {
	Clock       clock.Clock
	MaxAttempts int
	Events      *events.Emitter
	Metrics     *metrics.Metrics
}

// NewEngine creates an Engine.
func NewEngine(q *queue.Repository, store Store, notifier *chat.Notifier, cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Engine{
		queue:       q,
		matcher:     NewMatcher(q),
		store:       store,
		notifier:    notifier,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		maxAttempts: cfg.MaxAttempts,
		tracer:      otel.Tracer("github.com/mmynk/picadito/internal/matchmaking"),
	}
}

// Matcher returns the candidate matcher used by the engine.
func (e *Engine) Matcher() *Matcher {
	return e.matcher
}

// TryFormMatch tries to build a full roster around requester. It returns nil
// with no error when there are not enough compatible players yet.
//
// If requester's entry is no longer searching because another client already
// placed it in a match, that match is returned with Consumed false. If the
// entry is gone and no such match exists, the error wraps errs.ErrNotFound.
func (e *Engine) TryFormMatch(ctx context.Context, requester *models.QueueEntry, prefs models.Preferences) (*Formation, error) {
	ctx, span := e.tracer.Start(ctx, "matchmaking.TryFormMatch", trace.WithAttributes(
		attribute.String("entry_id", requester.ID),
		attribute.String("user_id", requester.UserID),
		attribute.String("format", string(prefs.Format)),
	))
	defer span.End()

	prefs, err := queue.NormalizePreferences(prefs)
	if err != nil {
		return nil, err
	}
	if prefs.Format != requester.Format {
		return nil, errs.Validation("preferences format %s does not match queue entry format %s", prefs.Format, requester.Format)
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		formation, err := e.attempt(ctx, requester, prefs)
		if errors.Is(err, errs.ErrConflict) {
			e.metrics.FormationConflict()
			span.AddEvent("conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
			slog.Debug("Formation lost a race, retrying", "entry_id", requester.ID, "attempt", attempt, "error", err)
			continue
		}
		if err != nil {
			e.metrics.FormationResult("error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if formation == nil {
			e.metrics.FormationResult("waiting")
			return nil, nil
		}
		e.metrics.FormationResult("formed")
		span.SetAttributes(attribute.String("match_id", formation.Match.ID))
		return formation, nil
	}

	e.metrics.FormationResult("conflict")
	err = fmt.Errorf("%w: gave up forming a match for entry %s after %d attempts",
		errs.ErrConflict, requester.ID, e.maxAttempts)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (e *Engine) attempt(ctx context.Context, requester *models.QueueEntry, prefs models.Preferences) (*Formation, error) {
	current, err := e.queue.Get(ctx, requester.ID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if current == nil || current.Status != models.QueueSearching {
		return e.Locate(ctx, requester)
	}
	// Polling keeps the entry live.
	if err := e.queue.Touch(ctx, current.ID); err != nil {
		return nil, err
	}

	candidates, err := e.matcher.FindCandidates(ctx, current.UserID, prefs)
	if err != nil {
		return nil, err
	}
	required := prefs.Format.MaxPlayers() - 1
	if len(candidates) < required {
		slog.Debug("Not enough players yet",
			"entry_id", current.ID,
			"format", prefs.Format,
			"candidates", len(candidates),
			"required", required,
		)
		return nil, nil
	}

	consumed := make([]*models.QueueEntry, 0, required+1)
	consumed = append(consumed, current)
	consumed = append(consumed, candidates[:required]...)

	match := BuildAutoMatch(e.clock.Now(), prefs, consumed)
	if err := e.store.CommitFormation(ctx, match, consumed); err != nil {
		return nil, err
	}

	slog.Info("Match formed",
		"match_id", match.ID,
		"host_id", match.HostID,
		"format", match.Format,
		"players", len(match.Players),
	)
	e.metrics.MatchFormed(string(match.Format))

	notice := e.notifier.Announce(ctx, match.ID, fmt.Sprintf(
		"Match formed by Solo Queue! %d players matched. Coordinate the details in this chat.",
		len(match.Players),
	))
	e.events.Emit(ctx, events.RKMatchFormed, events.MatchChanged{
		MatchID: match.ID,
		HostID:  match.HostID,
		Players: match.Players,
		Status:  string(match.Status),
		At:      e.events.Now(),
	})

	return &Formation{Match: match, Consumed: true, Notice: notice}, nil
}

// Locate finds the auto-formed match another client consumed requester's
// entry into. Only requester.ID and requester.UserID are used. The error
// wraps errs.ErrNotFound when the entry was never consumed or its match no
// longer has requester.UserID on the roster.
func (e *Engine) Locate(ctx context.Context, requester *models.QueueEntry) (*Formation, error) {
	match, err := e.store.FindMatchForEntry(ctx, requester.ID)
	if err != nil {
		return nil, err
	}
	if match == nil || !match.HasPlayer(requester.UserID) {
		return nil, errs.NotFound("queue entry", requester.ID)
	}
	slog.Info("Queue entry already consumed", "entry_id", requester.ID, "match_id", match.ID)
	return &Formation{Match: match}, nil
}

// BuildAutoMatch assembles the match for a formed group. The first entry
// becomes the host.
func BuildAutoMatch(now time.Time, prefs models.Preferences, entries []*models.QueueEntry) *models.Match {
	players := make([]string, len(entries))
	for i, e := range entries {
		players[i] = e.UserID
	}
	accepted := make([]string, len(players))
	copy(accepted, players)

	locality, neighborhood := "CABA", "A definir"
	if prefs.Zone != "" {
		locality, neighborhood = prefs.Zone, prefs.Zone
	}

	return &models.Match{
		FormatName:      prefs.Format.DisplayName(),
		Format:          prefs.Format,
		MaxPlayers:      prefs.Format.MaxPlayers(),
		Players:         players,
		AcceptedPlayers: accepted,
		Applicants:      []string{},
		HostID:          players[0],
		HostName:        AutoHostName,
		Date:            NextSaturday(now).Format(time.DateOnly),
		Time:            AutoKickoff,
		DurationMinutes: AutoDurationMinutes,
		VenueStatus:     models.VenueSearching,
		Location: models.Location{
			Province:     "Buenos Aires",
			Locality:     locality,
			Neighborhood: neighborhood,
		},
		Visibility:    models.VisibilityPublic,
		Filters:       models.AdmissionFilters{SkillLevel: models.SkillAny},
		Description:   fmt.Sprintf("Match created automatically by Solo Queue with %d players.", len(players)),
		Status:        models.MatchOpen,
		IsAutoMatched: true,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

// NextSaturday returns the coming Saturday. On a Saturday it returns the
// following one.
func NextSaturday(now time.Time) time.Time {
	days := int(time.Saturday - now.Weekday())
	if days <= 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}
