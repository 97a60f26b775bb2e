package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/matches"
	"github.com/mmynk/picadito/internal/middleware"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/pkg/api"
)

// MatchService implements the Connect MatchService.
type MatchService struct {
	matches *matches.Manager
}

// NewMatchService creates a new MatchService.
func NewMatchService(m *matches.Manager) *MatchService {
	return &MatchService{matches: m}
}

// CreateMatch creates a match hosted by the caller.
func (s *MatchService) CreateMatch(ctx context.Context, req *connect.Request[api.CreateMatchRequest]) (*connect.Response[api.CreateMatchResponse], error) {
	hostID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	hostName := req.Msg.HostName
	if strings.TrimSpace(hostName) == "" {
		hostName = middleware.GetDisplayName(ctx)
	}
	slog.Info("CreateMatch request received",
		"host_id", hostID,
		"format", req.Msg.Format,
		"date", req.Msg.Date,
	)

	result, err := s.matches.Create(ctx, hostID, hostName, matchFromCreateRequest(req.Msg))
	if err != nil {
		slog.Error("CreateMatch failed", "host_id", hostID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&api.CreateMatchResponse{
		Match:           matchToAPI(result.Match),
		NoticeDelivered: result.Notice.Delivered(),
	}), nil
}

// GetMatch retrieves a match by ID.
func (s *MatchService) GetMatch(ctx context.Context, req *connect.Request[api.GetMatchRequest]) (*connect.Response[api.GetMatchResponse], error) {
	match, err := s.matches.Get(ctx, req.Msg.MatchID)
	if err != nil {
		slog.Error("GetMatch failed", "match_id", req.Msg.MatchID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetMatchResponse{Match: matchToAPI(match)}), nil
}

// ListMatches lists matches in one status, soonest first.
func (s *MatchService) ListMatches(ctx context.Context, req *connect.Request[api.ListMatchesRequest]) (*connect.Response[api.ListMatchesResponse], error) {
	status := models.MatchStatus(req.Msg.Status)
	switch status {
	case "", models.MatchOpen, models.MatchClosed, models.MatchFinished, models.MatchCancelled:
	default:
		return nil, toConnectError(errs.Validation("unknown match status %q", req.Msg.Status))
	}

	list, err := s.matches.List(ctx, status)
	if err != nil {
		slog.Error("ListMatches failed", "status", status, "error", err)
		return nil, toConnectError(err)
	}

	resp := &api.ListMatchesResponse{Matches: make([]*api.Match, 0, len(list))}
	for _, m := range list {
		resp.Matches = append(resp.Matches, matchToAPI(m))
	}
	slog.Info("ListMatches successful", "status", status, "count", len(resp.Matches))
	return connect.NewResponse(resp), nil
}

// ApplyToMatch puts the caller on the match's applicant list.
func (s *MatchService) ApplyToMatch(ctx context.Context, req *connect.Request[api.ApplyToMatchRequest]) (*connect.Response[api.ApplyToMatchResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.matches.Apply(ctx, req.Msg.MatchID, userID); err != nil {
		slog.Error("ApplyToMatch failed", "match_id", req.Msg.MatchID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ApplyToMatchResponse{}), nil
}

// DecideApplicant accepts or rejects an applicant. Caller must be the host.
func (s *MatchService) DecideApplicant(ctx context.Context, req *connect.Request[api.DecideApplicantRequest]) (*connect.Response[api.DecideApplicantResponse], error) {
	hostID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	decision, ok := parseDecision(req.Msg.Action)
	if !ok {
		return nil, toConnectError(errs.Validation("action must be accept or reject, got %q", req.Msg.Action))
	}
	if req.Msg.UserID == "" {
		return nil, toConnectError(errs.Validation("user id is required"))
	}

	notice, err := s.matches.Decide(ctx, req.Msg.MatchID, hostID, req.Msg.UserID, decision, req.Msg.DisplayName)
	if err != nil {
		slog.Error("DecideApplicant failed",
			"match_id", req.Msg.MatchID,
			"user_id", req.Msg.UserID,
			"action", decision,
			"error", err,
		)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.DecideApplicantResponse{NoticeDelivered: notice.Delivered()}), nil
}

// AddManualPlayer adds a player without an account. Caller must be the host.
func (s *MatchService) AddManualPlayer(ctx context.Context, req *connect.Request[api.AddManualPlayerRequest]) (*connect.Response[api.AddManualPlayerResponse], error) {
	hostID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	playerID, err := s.matches.AddManualPlayer(ctx, req.Msg.MatchID, hostID, req.Msg.Name)
	if err != nil {
		slog.Error("AddManualPlayer failed", "match_id", req.Msg.MatchID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.AddManualPlayerResponse{PlayerID: playerID}), nil
}

// SetMatchStatus moves a match through its lifecycle. Caller must be the host.
func (s *MatchService) SetMatchStatus(ctx context.Context, req *connect.Request[api.SetMatchStatusRequest]) (*connect.Response[api.SetMatchStatusResponse], error) {
	hostID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.matches.SetStatus(ctx, req.Msg.MatchID, hostID, models.MatchStatus(req.Msg.Status))
	if err != nil {
		slog.Error("SetMatchStatus failed", "match_id", req.Msg.MatchID, "status", req.Msg.Status, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.SetMatchStatusResponse{
		Match:           matchToAPI(result.Match),
		NoticeDelivered: result.Notice.Delivered(),
	}), nil
}

// DeleteMatch removes a match with its chat. Caller must be the host.
func (s *MatchService) DeleteMatch(ctx context.Context, req *connect.Request[api.DeleteMatchRequest]) (*connect.Response[api.DeleteMatchResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.matches.Delete(ctx, req.Msg.MatchID, userID); err != nil {
		slog.Error("DeleteMatch failed", "match_id", req.Msg.MatchID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.DeleteMatchResponse{}), nil
}
