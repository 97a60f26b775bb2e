package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/storage/sqlite"
)

func setupRepository(t *testing.T) (*Repository, *clock.Fake) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake(time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC))
	return NewRepository(store, clk, 30*time.Minute, events.NewEmitter(nil, nil), nil), clk
}

func TestNormalizePreferences(t *testing.T) {
	tests := []struct {
		name    string
		in      models.Preferences
		want    models.Preferences
		wantErr bool
	}{
		{
			name: "defaults",
			in:   models.Preferences{Format: models.FiveASide, Zone: "  Palermo "},
			want: models.Preferences{
				Format:     models.FiveASide,
				Zone:       "Palermo",
				SkillLevel: models.SkillAny,
				DateRange:  models.DateThisWeek,
			},
		},
		{
			name: "explicit values kept",
			in: models.Preferences{
				Format:     models.ElevenASide,
				SkillLevel: models.SkillAdvanced,
				DateRange:  models.DateToday,
			},
			want: models.Preferences{
				Format:     models.ElevenASide,
				SkillLevel: models.SkillAdvanced,
				DateRange:  models.DateToday,
			},
		},
		{
			name: "format case and spacing ignored",
			in:   models.Preferences{Format: " Seven-A-Side"},
			want: models.Preferences{
				Format:     models.SevenASide,
				SkillLevel: models.SkillAny,
				DateRange:  models.DateThisWeek,
			},
		},
		{name: "unknown format", in: models.Preferences{Format: "futsal"}, wantErr: true},
		{name: "unknown skill", in: models.Preferences{Format: models.FiveASide, SkillLevel: "pro"}, wantErr: true},
		{name: "unknown date range", in: models.Preferences{Format: models.FiveASide, DateRange: "someday"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePreferences(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errs.ErrValidation) {
					t.Errorf("Expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	repo, clk := setupRepository(t)
	ctx := context.Background()

	entry, err := repo.Join(ctx, "alice", models.Preferences{Format: models.SevenASide, Zone: "Palermo"})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if entry.Status != models.QueueSearching {
		t.Errorf("Expected searching, got %s", entry.Status)
	}
	if !entry.CreatedAt.Equal(clk.Now()) {
		t.Errorf("Expected CreatedAt from clock, got %v", entry.CreatedAt)
	}
	if entry.SkillLevel != models.SkillAny || entry.DateRange != models.DateThisWeek {
		t.Errorf("Expected defaults, got %s/%s", entry.SkillLevel, entry.DateRange)
	}

	t.Run("second join fails with validation", func(t *testing.T) {
		_, err := repo.Join(ctx, "alice", models.Preferences{Format: models.FiveASide})
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		_, err := repo.Join(ctx, "", models.Preferences{Format: models.FiveASide})
		if !errors.Is(err, errs.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})

	t.Run("join after stale entry succeeds", func(t *testing.T) {
		clk.Advance(31 * time.Minute)
		fresh, err := repo.Join(ctx, "alice", models.Preferences{Format: models.FiveASide})
		if err != nil {
			t.Fatalf("Expected stale entry to be replaced, got %v", err)
		}
		active, err := repo.ActiveEntry(ctx, "alice")
		if err != nil {
			t.Fatalf("ActiveEntry failed: %v", err)
		}
		if active == nil || active.ID != fresh.ID {
			t.Errorf("Expected active entry %s, got %+v", fresh.ID, active)
		}
	})
}

func TestLeave(t *testing.T) {
	repo, _ := setupRepository(t)
	ctx := context.Background()

	entry, err := repo.Join(ctx, "bob", models.Preferences{Format: models.FiveASide})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if err := repo.Leave(ctx, entry.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if err := repo.Leave(ctx, entry.ID); err != nil {
		t.Errorf("Second Leave should be a no-op, got %v", err)
	}

	active, err := repo.ActiveEntry(ctx, "bob")
	if err != nil {
		t.Fatalf("ActiveEntry failed: %v", err)
	}
	if active != nil {
		t.Errorf("Expected no active entry, got %+v", active)
	}

	if _, err := repo.Join(ctx, "bob", models.Preferences{Format: models.FiveASide}); err != nil {
		t.Errorf("Rejoin after leave failed: %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, clk := setupRepository(t)
	ctx := context.Background()

	joins := []struct {
		user  string
		prefs models.Preferences
	}{
		{"a", models.Preferences{Format: models.FiveASide, SkillLevel: models.SkillBeginner}},
		{"b", models.Preferences{Format: models.FiveASide, SkillLevel: models.SkillAdvanced}},
		{"c", models.Preferences{Format: models.ElevenASide}},
	}
	for _, j := range joins {
		if _, err := repo.Join(ctx, j.user, j.prefs); err != nil {
			t.Fatalf("Join %s failed: %v", j.user, err)
		}
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected total 3, got %d", stats.Total)
	}
	if stats.ByFormat[models.FiveASide] != 2 || stats.ByFormat[models.ElevenASide] != 1 {
		t.Errorf("Unexpected format buckets: %v", stats.ByFormat)
	}
	if n, ok := stats.ByFormat[models.SevenASide]; !ok || n != 0 {
		t.Errorf("Expected empty seven-a-side bucket present, got %v", stats.ByFormat)
	}
	if stats.BySkillLevel[models.SkillAny] != 1 || stats.BySkillLevel[models.SkillBeginner] != 1 {
		t.Errorf("Unexpected skill buckets: %v", stats.BySkillLevel)
	}

	t.Run("stale entries are not counted and get swept", func(t *testing.T) {
		clk.Advance(time.Hour)
		stats, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Total != 0 {
			t.Errorf("Expected stale entries ignored, got total %d", stats.Total)
		}

		n, err := repo.Sweep(ctx)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected 3 swept, got %d", n)
		}
	})
}

func TestTouchKeepsEntryLive(t *testing.T) {
	repo, clk := setupRepository(t)
	ctx := context.Background()

	polled, err := repo.Join(ctx, "alice", models.Preferences{Format: models.FiveASide})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	idle, err := repo.Join(ctx, "bob", models.Preferences{Format: models.FiveASide})
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// alice polls every 10 minutes for an hour, bob never does.
	for n := 0; n < 6; n++ {
		clk.Advance(10 * time.Minute)
		if err := repo.Touch(ctx, polled.ID); err != nil {
			t.Fatalf("Touch failed: %v", err)
		}
	}

	active, err := repo.ActiveEntry(ctx, "alice")
	if err != nil {
		t.Fatalf("ActiveEntry failed: %v", err)
	}
	if active == nil || active.ID != polled.ID {
		t.Fatalf("Expected the polled entry to stay live, got %+v", active)
	}
	if !active.CreatedAt.Equal(polled.CreatedAt) || !active.LastSeenAt.Equal(clk.Now()) {
		t.Errorf("Expected only LastSeenAt to move, got created=%v seen=%v", active.CreatedAt, active.LastSeenAt)
	}
	if active.Version != polled.Version {
		t.Errorf("Touch must not bump the version, got %d want %d", active.Version, polled.Version)
	}

	if gone, err := repo.ActiveEntry(ctx, "bob"); err != nil || gone != nil {
		t.Errorf("Expected bob's idle entry to be stale, got %+v, %v", gone, err)
	}

	n, err := repo.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected only the idle entry swept, got %d", n)
	}
	if _, err := repo.Get(ctx, idle.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Expected idle entry deleted, got %v", err)
	}
}
