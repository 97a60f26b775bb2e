package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/matchmaking"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/internal/queue"
	"github.com/mmynk/picadito/pkg/api"
)

// QueueService implements the Connect QueueService.
type QueueService struct {
	queue  *queue.Repository
	engine *matchmaking.Engine
}

// NewQueueService creates a new QueueService.
func NewQueueService(q *queue.Repository, engine *matchmaking.Engine) *QueueService {
	return &QueueService{queue: q, engine: engine}
}

// JoinQueue creates a searching entry for the caller.
func (s *QueueService) JoinQueue(ctx context.Context, req *connect.Request[api.JoinQueueRequest]) (*connect.Response[api.JoinQueueResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("JoinQueue request received",
		"user_id", userID,
		"format", req.Msg.Preferences.Format,
		"zone", req.Msg.Preferences.Zone,
	)

	entry, err := s.queue.Join(ctx, userID, preferencesFromAPI(req.Msg.Preferences))
	if err != nil {
		slog.Error("JoinQueue failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.JoinQueueResponse{Entry: queueEntryToAPI(entry)}), nil
}

// LeaveQueue removes one of the caller's entries. Leaving an entry that no
// longer exists succeeds.
func (s *QueueService) LeaveQueue(ctx context.Context, req *connect.Request[api.LeaveQueueRequest]) (*connect.Response[api.LeaveQueueResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.EntryID == "" {
		return nil, toConnectError(errs.Validation("entry id is required"))
	}
	slog.Info("LeaveQueue request received", "user_id", userID, "entry_id", req.Msg.EntryID)

	entry, err := s.queue.Get(ctx, req.Msg.EntryID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return connect.NewResponse(&api.LeaveQueueResponse{}), nil
	case err != nil:
		return nil, toConnectError(err)
	case entry.UserID != userID:
		return nil, toConnectError(errs.Permission("entry %s belongs to another user", entry.ID))
	}

	if err := s.queue.Leave(ctx, entry.ID); err != nil {
		slog.Error("LeaveQueue failed", "entry_id", entry.ID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.LeaveQueueResponse{}), nil
}

// GetQueueStatus returns the caller's live searching entry, if any.
func (s *QueueService) GetQueueStatus(ctx context.Context, req *connect.Request[api.GetQueueStatusRequest]) (*connect.Response[api.GetQueueStatusResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.queue.ActiveEntry(ctx, userID)
	if err != nil {
		slog.Error("GetQueueStatus failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetQueueStatusResponse{Entry: queueEntryToAPI(entry)}), nil
}

// GetQueueStats aggregates every live searching entry.
func (s *QueueService) GetQueueStats(ctx context.Context, req *connect.Request[api.GetQueueStatsRequest]) (*connect.Response[api.GetQueueStatsResponse], error) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		slog.Error("GetQueueStats failed", "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.GetQueueStatsResponse{
		Total:        stats.Total,
		ByFormat:     make(map[string]int, len(stats.ByFormat)),
		BySkillLevel: make(map[string]int, len(stats.BySkillLevel)),
	}
	for f, n := range stats.ByFormat {
		resp.ByFormat[string(f)] = n
	}
	for l, n := range stats.BySkillLevel {
		resp.BySkillLevel[string(l)] = n
	}
	return connect.NewResponse(resp), nil
}

// FindMatch runs one formation attempt for the caller's entry. A nil match
// in the response means the caller should poll again later.
func (s *QueueService) FindMatch(ctx context.Context, req *connect.Request[api.FindMatchRequest]) (*connect.Response[api.FindMatchResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.EntryID == "" {
		return nil, toConnectError(errs.Validation("entry id is required"))
	}

	entry, err := s.queue.Get(ctx, req.Msg.EntryID)
	if errors.Is(err, errs.ErrNotFound) {
		// Consumed by another client's formation: find where it went.
		formation, err := s.engine.Locate(ctx, &models.QueueEntry{ID: req.Msg.EntryID, UserID: userID})
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&api.FindMatchResponse{Match: matchToAPI(formation.Match)}), nil
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	if entry.UserID != userID {
		return nil, toConnectError(errs.Permission("entry %s belongs to another user", entry.ID))
	}

	prefs := entry.Preferences()
	if req.Msg.Preferences != nil {
		prefs = preferencesFromAPI(*req.Msg.Preferences)
	}

	formation, err := s.engine.TryFormMatch(ctx, entry, prefs)
	if err != nil {
		slog.Warn("FindMatch failed", "entry_id", entry.ID, "error", err)
		return nil, toConnectError(err)
	}
	if formation == nil {
		return connect.NewResponse(&api.FindMatchResponse{}), nil
	}
	return connect.NewResponse(&api.FindMatchResponse{Match: matchToAPI(formation.Match)}), nil
}
