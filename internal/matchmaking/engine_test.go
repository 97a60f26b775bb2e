package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/models"
)

var fivePrefs = models.Preferences{Format: models.FiveASide, Zone: "Palermo", SkillLevel: models.SkillAny}

func TestTryFormMatchThreshold(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	requester := env.join(t, "host", fivePrefs)
	users := []string{"host"}
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("p%d", i)
		env.join(t, id, fivePrefs)
		users = append(users, id)
	}

	formation, err := env.engine.TryFormMatch(ctx, requester, fivePrefs)
	if err != nil {
		t.Fatalf("TryFormMatch failed: %v", err)
	}
	if formation != nil {
		t.Fatalf("Expected no match with 9 players, got %s", formation.Match.ID)
	}

	env.join(t, "p9", fivePrefs)
	users = append(users, "p9")

	formation, err = env.engine.TryFormMatch(ctx, requester, fivePrefs)
	if err != nil {
		t.Fatalf("TryFormMatch failed: %v", err)
	}
	if formation == nil {
		t.Fatal("Expected a match with 10 players")
	}
	if !formation.Consumed {
		t.Error("Expected the requester's own formation to report Consumed")
	}

	match := formation.Match
	if len(match.Players) != 10 {
		t.Errorf("Expected 10 players, got %d", len(match.Players))
	}
	if match.HostID != "host" || match.Players[0] != "host" {
		t.Errorf("Expected requester as host, got %s", match.HostID)
	}
	if !match.IsAutoMatched || match.Status != models.MatchOpen {
		t.Errorf("Expected open auto-matched match, got %s auto=%v", match.Status, match.IsAutoMatched)
	}
	if match.HostName != AutoHostName || match.Time != AutoKickoff || match.DurationMinutes != AutoDurationMinutes {
		t.Errorf("Unexpected defaults: %s %s %d", match.HostName, match.Time, match.DurationMinutes)
	}
	if match.VenueStatus != models.VenueSearching || match.Visibility != models.VisibilityPublic {
		t.Errorf("Unexpected venue/visibility: %s %s", match.VenueStatus, match.Visibility)
	}
	if len(match.Applicants) != 0 {
		t.Errorf("Expected no applicants, got %v", match.Applicants)
	}

	for _, u := range users {
		active, err := env.queue.ActiveEntry(ctx, u)
		if err != nil {
			t.Fatalf("ActiveEntry failed: %v", err)
		}
		if active != nil {
			t.Errorf("Expected %s to leave the queue, still has entry %s", u, active.ID)
		}
	}

	msgs, err := env.channel.History(ctx, match.ID, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsSystem || !strings.Contains(msgs[0].Text, "10 players") {
		t.Errorf("Expected one system message announcing 10 players, got %+v", msgs)
	}
	if !formation.Notice.Delivered() {
		t.Errorf("Expected notice delivered, got %v", formation.Notice.Err)
	}
}

func TestTryFormMatchValidation(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	requester := env.join(t, "host", fivePrefs)

	_, err := env.engine.TryFormMatch(context.Background(), requester, models.Preferences{Format: models.SevenASide})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected ErrValidation for format mismatch, got %v", err)
	}

	_, err = env.engine.TryFormMatch(context.Background(), requester, models.Preferences{Format: "hockey"})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Expected ErrValidation for unknown format, got %v", err)
	}
}

func TestTryFormMatchLocatesConsumedEntry(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	var entries []*models.QueueEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, env.join(t, fmt.Sprintf("u%d", i), fivePrefs))
	}

	first, err := env.engine.TryFormMatch(ctx, entries[0], fivePrefs)
	if err != nil || first == nil {
		t.Fatalf("Expected first requester to form a match, got %v, %v", first, err)
	}

	other, err := env.engine.TryFormMatch(ctx, entries[5], fivePrefs)
	if err != nil {
		t.Fatalf("TryFormMatch for consumed entry failed: %v", err)
	}
	if other == nil || other.Match.ID != first.Match.ID {
		t.Fatalf("Expected to locate match %s, got %+v", first.Match.ID, other)
	}
	if other.Consumed {
		t.Error("Located match should not report Consumed")
	}
}

func TestTryFormMatchEntryGone(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	entry := env.join(t, "quitter", fivePrefs)
	if err := env.queue.Leave(ctx, entry.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	_, err := env.engine.TryFormMatch(ctx, entry, fivePrefs)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLocateOnlyFollowsTheEntry(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	var entries []*models.QueueEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, env.join(t, fmt.Sprintf("u%d", i), fivePrefs))
	}
	formed, err := env.engine.TryFormMatch(ctx, entries[0], fivePrefs)
	if err != nil || formed == nil {
		t.Fatalf("Expected a match, got %v, %v", formed, err)
	}

	t.Run("a later entry of a matched player", func(t *testing.T) {
		again := env.join(t, "u3", fivePrefs)
		if err := env.queue.Leave(ctx, again.ID); err != nil {
			t.Fatalf("Leave failed: %v", err)
		}
		_, err := env.engine.TryFormMatch(ctx, again, fivePrefs)
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Expected ErrNotFound instead of the earlier match, got %v", err)
		}
	})

	t.Run("someone else's consumed entry", func(t *testing.T) {
		_, err := env.engine.Locate(ctx, &models.QueueEntry{ID: entries[4].ID, UserID: "stranger"})
		if !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("own consumed entry", func(t *testing.T) {
		located, err := env.engine.Locate(ctx, &models.QueueEntry{ID: entries[4].ID, UserID: "u4"})
		if err != nil {
			t.Fatalf("Locate failed: %v", err)
		}
		if located.Match.ID != formed.Match.ID {
			t.Errorf("Expected match %s, got %s", formed.Match.ID, located.Match.ID)
		}
	})
}

func TestPollingKeepsEntryLive(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC))
	env := newTestEnv(t, envOptions{clock: clk})
	ctx := context.Background()

	patient := env.join(t, "patient", fivePrefs)
	for n := 0; n < 4; n++ {
		clk.Advance(20 * time.Minute)
		formation, err := env.engine.TryFormMatch(ctx, patient, fivePrefs)
		if err != nil || formation != nil {
			t.Fatalf("Expected to keep waiting, got %v, %v", formation, err)
		}
	}

	// Eighty minutes after joining, past the one-hour window, the entry is
	// still a candidate because it was polled.
	live, err := env.queue.Searching(ctx, models.FiveASide)
	if err != nil {
		t.Fatalf("Searching failed: %v", err)
	}
	if len(live) != 1 || live[0].ID != patient.ID {
		t.Errorf("Expected the polled entry to stay live, got %d entries", len(live))
	}
}

// conflictingStore fails the first n commits with errs.ErrConflict.
type conflictingStore struct {
	Store
	remaining atomic.Int32
	calls     atomic.Int32
}

func (s *conflictingStore) CommitFormation(ctx context.Context, match *models.Match, consumed []*models.QueueEntry) error {
	s.calls.Add(1)
	if s.remaining.Add(-1) >= 0 {
		return fmt.Errorf("%w: injected", errs.ErrConflict)
	}
	return s.Store.CommitFormation(ctx, match, consumed)
}

func TestTryFormMatchRetriesConflicts(t *testing.T) {
	t.Run("recovers within the attempt budget", func(t *testing.T) {
		var cs *conflictingStore
		env := newTestEnv(t, envOptions{wrapStore: func(s Store) Store {
			cs = &conflictingStore{Store: s}
			cs.remaining.Store(2)
			return cs
		}})

		requester := env.join(t, "host", fivePrefs)
		for i := 0; i < 9; i++ {
			env.join(t, fmt.Sprintf("p%d", i), fivePrefs)
		}

		formation, err := env.engine.TryFormMatch(context.Background(), requester, fivePrefs)
		if err != nil {
			t.Fatalf("TryFormMatch failed: %v", err)
		}
		if formation == nil {
			t.Fatal("Expected a match after retries")
		}
		if got := cs.calls.Load(); got != 3 {
			t.Errorf("Expected 3 commit attempts, got %d", got)
		}
	})

	t.Run("gives up with ErrConflict", func(t *testing.T) {
		var cs *conflictingStore
		env := newTestEnv(t, envOptions{wrapStore: func(s Store) Store {
			cs = &conflictingStore{Store: s}
			cs.remaining.Store(100)
			return cs
		}})

		requester := env.join(t, "host", fivePrefs)
		for i := 0; i < 9; i++ {
			env.join(t, fmt.Sprintf("p%d", i), fivePrefs)
		}

		_, err := env.engine.TryFormMatch(context.Background(), requester, fivePrefs)
		if !errors.Is(err, errs.ErrConflict) {
			t.Fatalf("Expected ErrConflict, got %v", err)
		}
		if got := cs.calls.Load(); got != DefaultMaxAttempts {
			t.Errorf("Expected %d commit attempts, got %d", DefaultMaxAttempts, got)
		}
	})
}

func TestConcurrentFormationAtMostOneMatch(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	const players = 30
	entries := make([]*models.QueueEntry, players)
	for i := range entries {
		entries[i] = env.join(t, fmt.Sprintf("racer-%02d", i), fivePrefs)
	}

	var wg sync.WaitGroup
	results := make([]*models.Match, players)
	for i, entry := range entries {
		i, entry := i, entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 50; attempt++ {
				formation, err := env.engine.TryFormMatch(ctx, entry, fivePrefs)
				if errors.Is(err, errs.ErrConflict) {
					continue
				}
				if err != nil {
					t.Errorf("%s: TryFormMatch failed: %v", entry.UserID, err)
					return
				}
				if formation != nil {
					results[i] = formation.Match
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	all, err := env.store.ListMatches(ctx, models.MatchOpen)
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(all) != players/10 {
		t.Errorf("Expected %d matches, got %d", players/10, len(all))
	}

	seen := make(map[string]string)
	for _, m := range all {
		if len(m.Players) != 10 {
			t.Errorf("Match %s has %d players", m.ID, len(m.Players))
		}
		for _, p := range m.Players {
			if prev, ok := seen[p]; ok {
				t.Errorf("Player %s is in matches %s and %s", p, prev, m.ID)
			}
			seen[p] = m.ID
		}
	}

	for i, entry := range entries {
		if results[i] == nil {
			t.Errorf("%s never learned its match", entry.UserID)
			continue
		}
		if seen[entry.UserID] != results[i].ID {
			t.Errorf("%s was told match %s but plays in %s", entry.UserID, results[i].ID, seen[entry.UserID])
		}
	}
}

func TestFormationSurvivesChatFailure(t *testing.T) {
	env := newTestEnv(t, envOptions{chatStore: failingChatStore{}})
	ctx := context.Background()

	requester := env.join(t, "host", fivePrefs)
	for i := 0; i < 9; i++ {
		env.join(t, fmt.Sprintf("p%d", i), fivePrefs)
	}

	formation, err := env.engine.TryFormMatch(ctx, requester, fivePrefs)
	if err != nil {
		t.Fatalf("Chat failure must not fail formation: %v", err)
	}
	if formation == nil {
		t.Fatal("Expected a match")
	}
	if formation.Notice.Delivered() {
		t.Error("Expected notice to report the failure")
	}
	if !errors.Is(formation.Notice.Err, errChatDown) {
		t.Errorf("Expected chat error in notice, got %v", formation.Notice.Err)
	}
	if _, err := env.store.GetMatch(ctx, formation.Match.ID); err != nil {
		t.Errorf("Expected match persisted, got %v", err)
	}
}

func TestNextSaturday(t *testing.T) {
	tests := []struct {
		today string
		want  string
	}{
		{"2026-10-12", "2026-10-17"}, // Monday
		{"2026-10-16", "2026-10-17"}, // Friday
		{"2026-10-17", "2026-10-24"}, // Saturday
		{"2026-10-18", "2026-10-24"}, // Sunday
		{"2026-12-30", "2027-01-02"}, // year boundary
	}
	for _, tt := range tests {
		t.Run(tt.today, func(t *testing.T) {
			now, err := time.Parse(time.DateOnly, tt.today)
			if err != nil {
				t.Fatal(err)
			}
			if got := NextSaturday(now).Format(time.DateOnly); got != tt.want {
				t.Errorf("NextSaturday(%s) = %s, want %s", tt.today, got, tt.want)
			}
		})
	}
}

func TestBuildAutoMatchLocation(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	entries := []*models.QueueEntry{{UserID: "a"}, {UserID: "b"}}

	withZone := BuildAutoMatch(now, models.Preferences{Format: models.FiveASide, Zone: "Núñez"}, entries)
	if withZone.Location.Locality != "Núñez" || withZone.Location.Neighborhood != "Núñez" {
		t.Errorf("Expected zone as locality, got %+v", withZone.Location)
	}
	if withZone.Date != "2026-10-17" {
		t.Errorf("Expected next Saturday, got %s", withZone.Date)
	}

	noZone := BuildAutoMatch(now, models.Preferences{Format: models.FiveASide}, entries)
	if noZone.Location.Locality != "CABA" || noZone.Location.Neighborhood != "A definir" {
		t.Errorf("Expected default location, got %+v", noZone.Location)
	}
	if len(noZone.AcceptedPlayers) != 2 || noZone.HostID != "a" {
		t.Errorf("Unexpected roster: %+v", noZone)
	}
}
