package service

import (
	"time"

	"github.com/mmynk/picadito/internal/matches"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/pkg/api"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func queueEntryToAPI(e *models.QueueEntry) *api.QueueEntry {
	if e == nil {
		return nil
	}
	return &api.QueueEntry{
		ID:         e.ID,
		UserID:     e.UserID,
		Format:     string(e.Format),
		Zone:       e.Zone,
		SkillLevel: string(e.SkillLevel),
		DateRange:  string(e.DateRange),
		Status:     string(e.Status),
		CreatedAt:  millis(e.CreatedAt),
		LastSeenAt: millis(e.LastSeenAt),
	}
}

// preferencesFromAPI converts without validating; queue.NormalizePreferences
// rejects unknown values.
func preferencesFromAPI(p api.Preferences) models.Preferences {
	return models.Preferences{
		Format:     models.Format(p.Format),
		Zone:       p.Zone,
		SkillLevel: models.SkillLevel(p.SkillLevel),
		DateRange:  models.DateRange(p.DateRange),
	}
}

func matchToAPI(m *models.Match) *api.Match {
	if m == nil {
		return nil
	}
	out := &api.Match{
		ID:              m.ID,
		FormatName:      m.FormatName,
		Format:          string(m.Format),
		MaxPlayers:      m.MaxPlayers,
		Players:         nonNil(m.Players),
		AcceptedPlayers: nonNil(m.AcceptedPlayers),
		Applicants:      nonNil(m.Applicants),
		HostID:          m.HostID,
		HostName:        m.HostName,
		Date:            m.Date,
		Time:            m.Time,
		DurationMinutes: m.DurationMinutes,
		VenueStatus:     string(m.VenueStatus),
		Location:        api.Location(m.Location),
		Visibility:      string(m.Visibility),
		Cost:            api.Cost(m.Cost),
		Filters: api.AdmissionFilters{
			MinAge:            m.Filters.MinAge,
			MaxAge:            m.Filters.MaxAge,
			SkillLevel:        string(m.Filters.SkillLevel),
			RequiredPositions: m.Filters.RequiredPositions,
		},
		Description:   m.Description,
		Status:        string(m.Status),
		IsAutoMatched: m.IsAutoMatched,
		CreatedAt:     millis(m.CreatedAt),
		UpdatedAt:     millis(m.UpdatedAt),
	}
	if len(m.ManualPlayers) > 0 {
		out.ManualPlayers = make(map[string]api.ManualPlayer, len(m.ManualPlayers))
		for id, p := range m.ManualPlayers {
			out.ManualPlayers[id] = api.ManualPlayer{
				Name:    p.Name,
				AddedBy: p.AddedBy,
				AddedAt: millis(p.AddedAt),
			}
		}
	}
	return out
}

func matchFromCreateRequest(req *api.CreateMatchRequest) models.Match {
	return models.Match{
		Format:          models.Format(req.Format),
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		VenueStatus:     models.VenueStatus(req.VenueStatus),
		Location:        models.Location(req.Location),
		Visibility:      models.Visibility(req.Visibility),
		Cost:            models.Cost(req.Cost),
		Filters: models.AdmissionFilters{
			MinAge:            req.Filters.MinAge,
			MaxAge:            req.Filters.MaxAge,
			SkillLevel:        models.SkillLevel(req.Filters.SkillLevel),
			RequiredPositions: req.Filters.RequiredPositions,
		},
		Description: req.Description,
	}
}

func chatMessageToAPI(m *models.ChatMessage) *api.ChatMessage {
	if m == nil {
		return nil
	}
	return &api.ChatMessage{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		SenderPhoto: m.SenderPhoto,
		Text:        m.Text,
		SentAt:      millis(m.SentAt),
		Seq:         m.Seq,
		IsSystem:    m.IsSystem,
		Read:        m.Read,
	}
}

func parseDecision(action string) (matches.Decision, bool) {
	switch d := matches.Decision(action); d {
	case matches.Accept, matches.Reject:
		return d, true
	}
	return "", false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
