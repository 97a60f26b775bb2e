// Package matches manages the lifecycle and roster of a match: creation,
// applications, host decisions, manual players, status changes and deletion.
//
// Roster changes run through storage.MatchStore.UpdateMatch, so each one is a
// single read-modify-write transaction and concurrent writers cannot lose each
// other's updates. Chat announcements happen after the change is committed
// and never affect its outcome.
package matches

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/mmynk/picadito/internal/chat"
	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/storage"
)

// DefaultDurationMinutes is used when a match is created without a duration.
const DefaultDurationMinutes = 90

// Decision is a host's answer to an application.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
)

// Result is a committed change together with the outcome of its chat notice.
type Result struct {
	Match  *models.Match
	Notice chat.Notice
}

// Manager is the match lifecycle manager.
type Manager struct {
	store    storage.MatchStore
	notifier *chat.Notifier
	events   *events.Emitter
	clock    clock.Clock
}

// NewManager creates a Manager.
func NewManager(store storage.MatchStore, notifier *chat.Notifier, emitter *events.Emitter, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{store: store, notifier: notifier, events: emitter, clock: clk}
}

// Create stores a new match hosted by hostID and posts a welcome message.
// Only the descriptive fields of data are used; roster and status are set here.
func (m *Manager) Create(ctx context.Context, hostID, hostName string, data models.Match) (*Result, error) {
	if hostID == "" {
		return nil, errs.Validation("host id is required")
	}
	format, err := models.ParseFormat(string(data.Format))
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	data.Format = format
	if data.Date != "" {
		if _, err := time.Parse(time.DateOnly, data.Date); err != nil {
			return nil, errs.Validation("date %q is not YYYY-MM-DD", data.Date)
		}
	}
	if data.Time != "" {
		if _, err := time.Parse("15:04", data.Time); err != nil {
			return nil, errs.Validation("time %q is not HH:MM", data.Time)
		}
	}
	if data.Filters.MinAge < 0 || data.Filters.MaxAge < 0 ||
		(data.Filters.MaxAge > 0 && data.Filters.MinAge > data.Filters.MaxAge) {
		return nil, errs.Validation("invalid age range %d-%d", data.Filters.MinAge, data.Filters.MaxAge)
	}

	match := data
	match.ID = ""
	match.FormatName = data.Format.DisplayName()
	match.MaxPlayers = data.Format.MaxPlayers()
	match.HostID = hostID
	match.HostName = strings.TrimSpace(hostName)
	match.Players = []string{hostID}
	match.AcceptedPlayers = []string{hostID}
	match.Applicants = []string{}
	match.ManualPlayers = nil
	match.Status = models.MatchOpen
	match.IsAutoMatched = false
	if match.DurationMinutes <= 0 {
		match.DurationMinutes = DefaultDurationMinutes
	}
	if match.VenueStatus == "" {
		match.VenueStatus = models.VenueSearching
	}
	if match.Visibility == "" {
		match.Visibility = models.VisibilityPublic
	}
	if match.Filters.SkillLevel == "" {
		match.Filters.SkillLevel = models.SkillAny
	}
	now := m.clock.Now().UTC()
	match.CreatedAt = now
	match.UpdatedAt = now

	if err := m.store.CreateMatch(ctx, &match); err != nil {
		return nil, err
	}
	slog.Info("Match created", "match_id", match.ID, "host_id", hostID, "format", match.Format)

	welcome := "Match created!"
	if match.HostName != "" {
		welcome = fmt.Sprintf("Match created! %s welcomes you.", match.HostName)
	}
	notice := m.notifier.Announce(ctx, match.ID, welcome)
	m.events.Emit(ctx, events.RKMatchCreated, events.MatchChanged{
		MatchID: match.ID,
		HostID:  hostID,
		Status:  string(match.Status),
		At:      m.events.Now(),
	})

	return &Result{Match: &match, Notice: notice}, nil
}

// Get returns a match by id.
func (m *Manager) Get(ctx context.Context, matchID string) (*models.Match, error) {
	return m.store.GetMatch(ctx, matchID)
}

// List returns matches in status, ordered by date ascending. Matches without
// a date come last. An empty status lists open matches.
func (m *Manager) List(ctx context.Context, status models.MatchStatus) ([]*models.Match, error) {
	if status == "" {
		status = models.MatchOpen
	}
	list, err := m.store.ListMatches(ctx, status)
	if err != nil {
		return nil, err
	}
	SortByDate(list)
	return list, nil
}

// SortByDate orders matches by date ascending, undated last. The sort is stable.
func SortByDate(list []*models.Match) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Date, list[j].Date
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})
}

// Apply adds userID to the match's applicants. Applying twice is a no-op.
func (m *Manager) Apply(ctx context.Context, matchID, userID string) error {
	if userID == "" {
		return errs.Validation("user id is required")
	}
	_, err := m.store.UpdateMatch(ctx, matchID, func(match *models.Match) error {
		if match.Status != models.MatchOpen {
			return errs.Validation("match %s is %s", matchID, match.Status)
		}
		if match.HasPlayer(userID) {
			return errs.Validation("user %s is already playing in match %s", userID, matchID)
		}
		if match.HasApplicant(userID) {
			return nil
		}
		if match.Full() {
			return errs.Capacity(matchID, match.MaxPlayers)
		}
		match.Applicants = append(match.Applicants, userID)
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("Applied to match", "match_id", matchID, "user_id", userID)
	return nil
}

// Decide accepts or rejects an application. Only the host may decide, and
// not once the match is finished or cancelled. A closed match still lets the
// host accept pending applicants.
// Accepting moves userID from applicants to the roster and announces it in
// the chat as displayName. Accepting into a full roster fails with
// errs.ErrCapacity.
func (m *Manager) Decide(ctx context.Context, matchID, hostID, userID string, decision Decision, displayName string) (chat.Notice, error) {
	if decision != Accept && decision != Reject {
		return chat.Notice{}, errs.Validation("unknown decision %q", decision)
	}

	joined := false
	match, err := m.store.UpdateMatch(ctx, matchID, func(match *models.Match) error {
		if match.HostID != hostID {
			return errs.Permission("only the host can decide on applications")
		}
		if match.Status.Terminal() {
			return errs.Validation("match %s is %s", matchID, match.Status)
		}
		joined = false
		if decision == Reject {
			match.Applicants = remove(match.Applicants, userID)
			return nil
		}

		if match.HasPlayer(userID) {
			match.Applicants = remove(match.Applicants, userID)
			return nil
		}
		if !match.HasApplicant(userID) {
			return errs.Validation("user %s has not applied to match %s", userID, matchID)
		}
		if match.Full() {
			return errs.Capacity(matchID, match.MaxPlayers)
		}
		match.Applicants = remove(match.Applicants, userID)
		match.Players = append(match.Players, userID)
		match.AcceptedPlayers = append(match.AcceptedPlayers, userID)
		joined = true
		return nil
	})
	if err != nil {
		return chat.Notice{}, err
	}
	slog.Info("Application decided", "match_id", matchID, "user_id", userID, "decision", decision)

	if !joined {
		return chat.Notice{}, nil
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "A player"
	}
	notice := m.notifier.Announce(ctx, matchID, fmt.Sprintf("%s joined the match", name))
	m.events.Emit(ctx, events.RKMatchPlayerJoined, events.MatchChanged{
		MatchID: matchID,
		HostID:  match.HostID,
		UserID:  userID,
		At:      m.events.Now(),
	})
	return notice, nil
}

// AddManualPlayer puts a person without an account on the roster under a
// synthetic id, which is returned. Only the host may add manual players,
// and only while the match is open or closed.
func (m *Manager) AddManualPlayer(ctx context.Context, matchID, hostID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("player name is required")
	}

	now := m.clock.Now().UTC()
	var playerID string
	_, err := m.store.UpdateMatch(ctx, matchID, func(match *models.Match) error {
		if match.HostID != hostID {
			return errs.Permission("only the host can add players")
		}
		if match.Status.Terminal() {
			return errs.Validation("match %s is %s", matchID, match.Status)
		}
		if match.Full() {
			return errs.Capacity(matchID, match.MaxPlayers)
		}

		playerID = manualPlayerID(match, now)
		match.Players = append(match.Players, playerID)
		if match.ManualPlayers == nil {
			match.ManualPlayers = make(map[string]models.ManualPlayer)
		}
		match.ManualPlayers[playerID] = models.ManualPlayer{
			Name:    name,
			AddedBy: hostID,
			AddedAt: now,
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	slog.Info("Manual player added", "match_id", matchID, "player_id", playerID)
	return playerID, nil
}

// manualPlayerID derives an id from the timestamp, suffixed when two players
// are added within the same millisecond.
func manualPlayerID(match *models.Match, now time.Time) string {
	base := fmt.Sprintf("%s%d", models.ManualPlayerPrefix, now.UnixMilli())
	id := base
	for n := 2; match.HasPlayer(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

// SetStatus moves a match to a new lifecycle state. Only the host may do it.
// Cancelling a match is announced in its chat.
func (m *Manager) SetStatus(ctx context.Context, matchID, hostID string, status models.MatchStatus) (*Result, error) {
	match, err := m.store.UpdateMatch(ctx, matchID, func(match *models.Match) error {
		if match.HostID != hostID {
			return errs.Permission("only the host can change the match status")
		}
		if match.Status == status {
			return nil
		}
		if !match.Status.CanTransition(status) {
			return errs.Validation("match %s cannot go from %s to %s", matchID, match.Status, status)
		}
		match.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Match status changed", "match_id", matchID, "status", status)

	result := &Result{Match: match}
	if status == models.MatchCancelled {
		result.Notice = m.notifier.Announce(ctx, matchID, "The host cancelled this match.")
	}
	m.events.Emit(ctx, events.RKMatchStatusChanged, events.MatchChanged{
		MatchID: matchID,
		HostID:  hostID,
		Status:  string(status),
		At:      m.events.Now(),
	})
	return result, nil
}

// Delete permanently removes a match. Only the host may delete it.
func (m *Manager) Delete(ctx context.Context, matchID, requesterID string) error {
	match, err := m.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.HostID != requesterID {
		return errs.Permission("only the host can delete the match")
	}
	if err := m.store.DeleteMatch(ctx, matchID); err != nil {
		return err
	}
	slog.Info("Match deleted", "match_id", matchID, "host_id", requesterID)
	m.events.Emit(ctx, events.RKMatchDeleted, events.MatchChanged{
		MatchID: matchID,
		HostID:  requesterID,
		At:      m.events.Now(),
	})
	return nil
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == id })
}
