package matchmaking

import (
	"context"

	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/queue"
)

// Matcher produces the pool of queue entries compatible with a requester.
type Matcher struct {
	queue *queue.Repository
}

// NewMatcher creates a Matcher reading from q.
func NewMatcher(q *queue.Repository) *Matcher {
	return &Matcher{queue: q}
}

// FindCandidates returns live searching entries of other users with the same
// format and compatible zone and skill level. The result keeps store order
// and is a pool, not a ranking.
func (m *Matcher) FindCandidates(ctx context.Context, userID string, prefs models.Preferences) ([]*models.QueueEntry, error) {
	entries, err := m.queue.Searching(ctx, prefs.Format)
	if err != nil {
		return nil, err
	}

	var candidates []*models.QueueEntry
	for _, e := range entries {
		if e.UserID == userID {
			continue
		}
		if Compatible(prefs, e) {
			candidates = append(candidates, e)
		}
	}
	return candidates, nil
}

// Compatible reports whether candidate can play with a requester searching
// with prefs. An empty zone on either side matches any zone, and SkillAny on
// either side matches any level.
func Compatible(prefs models.Preferences, candidate *models.QueueEntry) bool {
	if candidate.Format != prefs.Format {
		return false
	}
	if !models.ZoneCompatible(prefs.Zone, candidate.Zone) {
		return false
	}
	return prefs.SkillLevel.Compatible(candidate.SkillLevel)
}
