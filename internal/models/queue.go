package models

import (
	"fmt"
	"strings"
	"time"
)

// Format is the kind of game being organized. It determines the roster size.
type Format string

const (
	FiveASide   Format = "five-a-side"
	SevenASide  Format = "seven-a-side"
	ElevenASide Format = "eleven-a-side"
)

// Formats lists every supported format in display order.
var Formats = []Format{FiveASide, SevenASide, ElevenASide}

// ParseFormat converts a wire value into a Format, ignoring case and
// surrounding whitespace.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown format %q", s)
	}
	return f, nil
}

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FiveASide, SevenASide, ElevenASide:
		return true
	}
	return false
}

// MaxPlayers is the number of players needed to fill a match of this format.
func (f Format) MaxPlayers() int {
	switch f {
	case FiveASide:
		return 10
	case SevenASide:
		return 14
	case ElevenASide:
		return 22
	}
	return 0
}

// DisplayName is the human-readable format name shown on a match.
func (f Format) DisplayName() string {
	switch f {
	case FiveASide:
		return "Fútbol 5"
	case SevenASide:
		return "Fútbol 7"
	case ElevenASide:
		return "Fútbol 11"
	}
	return string(f)
}

// SkillLevel is a player's self-declared level. SkillAny matches every level.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillAny          SkillLevel = "any"
)

// SkillLevels lists every skill level, SkillAny last.
var SkillLevels = []SkillLevel{SkillBeginner, SkillIntermediate, SkillAdvanced, SkillAny}

// ParseSkillLevel converts a wire value into a SkillLevel.
// An empty string is treated as SkillAny.
func ParseSkillLevel(s string) (SkillLevel, error) {
	if s == "" {
		return SkillAny, nil
	}
	l := SkillLevel(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown skill level %q", s)
	}
	return l, nil
}

func (l SkillLevel) Valid() bool {
	switch l {
	case SkillBeginner, SkillIntermediate, SkillAdvanced, SkillAny:
		return true
	}
	return false
}

// Compatible reports whether two players' levels allow them in the same match.
func (l SkillLevel) Compatible(other SkillLevel) bool {
	return l == SkillAny || other == SkillAny || l == other
}

// DateRange is how far ahead a searching player is willing to play.
type DateRange string

const (
	DateToday     DateRange = "today"
	DateThisWeek  DateRange = "this-week"
	DateThisMonth DateRange = "this-month"
)

// ParseDateRange converts a wire value into a DateRange.
// An empty string is treated as DateThisWeek.
func ParseDateRange(s string) (DateRange, error) {
	if s == "" {
		return DateThisWeek, nil
	}
	r := DateRange(s)
	switch r {
	case DateToday, DateThisWeek, DateThisMonth:
		return r, nil
	}
	return "", fmt.Errorf("unknown date range %q", s)
}

// QueueStatus is the state of a queue entry.
type QueueStatus string

const (
	QueueSearching QueueStatus = "searching"
	QueueMatched   QueueStatus = "matched"
	QueueCancelled QueueStatus = "cancelled"
)

// Preferences is what a player asks for when joining the queue.
type Preferences struct {
	Format     Format
	Zone       string // empty means any zone
	SkillLevel SkillLevel
	DateRange  DateRange
}

// ZoneCompatible reports whether two zones overlap. An empty zone on either
// side matches every zone.
func ZoneCompatible(a, b string) bool {
	return a == "" || b == "" || a == b
}

// QueueEntry is one user actively searching for a match.
type QueueEntry struct {
	// ID is assigned by the store (UUID format).
	ID string

	UserID string

	Format     Format
	Zone       string
	SkillLevel SkillLevel
	DateRange  DateRange

	Status QueueStatus

	// Version is bumped on every status change and checked when the entry is
	// consumed by group formation. Refreshing LastSeenAt leaves it alone.
	Version int64

	// CreatedAt is assigned by the store.
	CreatedAt time.Time

	// LastSeenAt is the last time the owner polled for a match. Staleness is
	// measured from it.
	LastSeenAt time.Time
}

// Preferences returns the search preferences stored on the entry.
func (e *QueueEntry) Preferences() Preferences {
	return Preferences{
		Format:     e.Format,
		Zone:       e.Zone,
		SkillLevel: e.SkillLevel,
		DateRange:  e.DateRange,
	}
}

// QueueStats aggregates searching entries.
type QueueStats struct {
	Total        int
	ByFormat     map[Format]int
	BySkillLevel map[SkillLevel]int
}

// NewQueueStats returns stats with every known bucket present and zeroed.
func NewQueueStats() QueueStats {
	s := QueueStats{
		ByFormat:     make(map[Format]int, len(Formats)),
		BySkillLevel: make(map[SkillLevel]int, len(SkillLevels)),
	}
	for _, f := range Formats {
		s.ByFormat[f] = 0
	}
	for _, l := range SkillLevels {
		s.BySkillLevel[l] = 0
	}
	return s
}
