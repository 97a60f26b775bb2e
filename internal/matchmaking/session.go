package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/metrics"
	"github.com/mmynk/picadito/internal/models"
)

// DefaultPollInterval is the delay between two formation attempts of a session.
const DefaultPollInterval = 5 * time.Second

// ErrSessionStarted is returned by Start on a session that already ran.
var ErrSessionStarted = errors.New("search session already started")

// Former runs one formation attempt for a queued entry. *Engine implements it.
type Former interface {
	TryFormMatch(ctx context.Context, entry *models.QueueEntry, prefs models.Preferences) (*Formation, error)
}

// Leaver removes a queue entry. *queue.Repository implements it.
type Leaver interface {
	Leave(ctx context.Context, entryID string) error
}

// SessionConfig tunes a SearchSession.
type SessionConfig struct {
	// Interval between attempts. Defaults to DefaultPollInterval.
	Interval time.Duration
	// Jitter adds a random delay in [0, Jitter) to every interval so many
	// clients queued together do not poll in lockstep.
	Jitter  time.Duration
	Clock   clock.Clock
	Metrics *metrics.Metrics
}

// SearchSession polls for a match on behalf of one queued user until a match
// is formed or the session is stopped. A session runs at most once.
type SearchSession struct {
	entry  *models.QueueEntry
	prefs  models.Preferences
	former Former
	leaver Leaver
	cfg    SessionConfig

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	match   *models.Match
	err     error
}

// NewSearchSession creates a session for entry searching with prefs.
func NewSearchSession(entry *models.QueueEntry, prefs models.Preferences, former Former, leaver Leaver, cfg SessionConfig) *SearchSession {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &SearchSession{
		entry:  entry,
		prefs:  prefs,
		former: former,
		leaver: leaver,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

// Start begins polling in the background. The loop ends when a match is
// formed, when Stop is called, or when ctx is done.
func (s *SearchSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSessionStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

func (s *SearchSession) run(ctx context.Context) {
	defer close(s.done)
	for {
		timer := s.cfg.Clock.NewTimer(s.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			s.finish(nil, ctx.Err())
			return
		case <-timer.C():
		}

		formation, err := s.former.TryFormMatch(ctx, s.entry, s.prefs)
		switch {
		case err != nil && errors.Is(err, errs.ErrNotFound):
			// The entry vanished without a match to show for it.
			s.cfg.Metrics.SearchTick("lost")
			s.finish(nil, err)
			return
		case err != nil:
			s.cfg.Metrics.SearchTick("error")
			slog.Debug("Search tick failed, retrying", "entry_id", s.entry.ID, "error", err)
		case formation == nil:
			s.cfg.Metrics.SearchTick("waiting")
		default:
			s.cfg.Metrics.SearchTick("matched")
			s.finish(formation.Match, nil)
			return
		}
	}
}

func (s *SearchSession) delay() time.Duration {
	d := s.cfg.Interval
	if s.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
	}
	return d
}

func (s *SearchSession) finish(match *models.Match, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.match = match
	s.err = err
}

// Done is closed when the polling loop has ended.
func (s *SearchSession) Done() <-chan struct{} {
	return s.done
}

// Result returns the formed match, or the reason the loop ended without one.
// It is only meaningful after Done is closed.
func (s *SearchSession) Result() (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match, s.err
}

// Wait blocks until the loop ends or ctx is done.
func (s *SearchSession) Wait(ctx context.Context) (*models.Match, error) {
	select {
	case <-s.done:
		return s.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop ends the polling loop and, unless a match was already formed, removes
// the queue entry. Stopping a session that never started only removes the entry.
func (s *SearchSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.started = true
	s.mu.Unlock()

	if started && cancel != nil {
		cancel()
		<-s.done
	}

	if match, _ := s.Result(); match != nil {
		return nil
	}
	return s.leaver.Leave(ctx, s.entry.ID)
}
