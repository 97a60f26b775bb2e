package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/picadito/internal/chat"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/matches"
	"github.com/mmynk/picadito/internal/middleware"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/pkg/api"
)

// subscribeBuffer is how many live messages a stream may fall behind before
// it is closed.
const subscribeBuffer = 64

// ChatService implements the Connect ChatService.
type ChatService struct {
	channel *chat.Channel
	matches *matches.Manager
}

// NewChatService creates a new ChatService.
func NewChatService(channel *chat.Channel, m *matches.Manager) *ChatService {
	return &ChatService{channel: channel, matches: m}
}

// SendMessage posts a message from the caller. Only players and applicants of
// the match may write to its chat.
func (s *ChatService) SendMessage(ctx context.Context, req *connect.Request[api.SendMessageRequest]) (*connect.Response[api.SendMessageResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	match, err := s.member(ctx, req.Msg.MatchID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}

	msg, err := s.channel.Send(ctx, match.ID, userID, middleware.GetDisplayName(ctx), req.Msg.SenderPhoto, req.Msg.Text)
	if err != nil {
		slog.Error("SendMessage failed", "match_id", match.ID, "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.SendMessageResponse{Message: chatMessageToAPI(msg)}), nil
}

// ListMessages returns the latest messages of a match, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, req *connect.Request[api.ListMessagesRequest]) (*connect.Response[api.ListMessagesResponse], error) {
	if _, err := s.matches.Get(ctx, req.Msg.MatchID); err != nil {
		return nil, toConnectError(err)
	}
	messages, err := s.channel.History(ctx, req.Msg.MatchID, req.Msg.Limit)
	if err != nil {
		slog.Error("ListMessages failed", "match_id", req.Msg.MatchID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ListMessagesResponse{Messages: messagesToAPI(messages)}), nil
}

// member loads a match and checks that userID plays in it or applied to it.
func (s *ChatService) member(ctx context.Context, matchID, userID string) (*models.Match, error) {
	match, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(userID) && !match.HasApplicant(userID) {
		return nil, errs.Permission("user %s is not part of match %s", userID, match.ID)
	}
	return match, nil
}

// MarkRead flags every message the caller did not send as read. Only members
// of the match may do it.
func (s *ChatService) MarkRead(ctx context.Context, req *connect.Request[api.MarkReadRequest]) (*connect.Response[api.MarkReadResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.member(ctx, req.Msg.MatchID, userID); err != nil {
		return nil, toConnectError(err)
	}
	n, err := s.channel.MarkRead(ctx, req.Msg.MatchID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.MarkReadResponse{Updated: n}), nil
}

// UnreadCount counts unread messages the caller did not send. Only members
// of the match may ask.
func (s *ChatService) UnreadCount(ctx context.Context, req *connect.Request[api.UnreadCountRequest]) (*connect.Response[api.UnreadCountResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.member(ctx, req.Msg.MatchID, userID); err != nil {
		return nil, toConnectError(err)
	}
	n, err := s.channel.UnreadCount(ctx, req.Msg.MatchID, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.UnreadCountResponse{Count: n}), nil
}

// Subscribe streams the match chat: first up to Backlog past messages, then
// every new one until the client disconnects.
func (s *ChatService) Subscribe(ctx context.Context, req *connect.Request[api.SubscribeRequest], stream *connect.ServerStream[api.ChatMessage]) error {
	if _, err := s.matches.Get(ctx, req.Msg.MatchID); err != nil {
		return toConnectError(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before reading the backlog so nothing published in between
	// is lost; duplicates are dropped by sequence number.
	live := make(chan *models.ChatMessage, subscribeBuffer)
	unsubscribe, err := s.channel.Subscribe(ctx, req.Msg.MatchID, func(msg *models.ChatMessage) {
		select {
		case live <- msg:
		default:
			slog.Warn("Chat subscriber too slow, closing stream", "match_id", req.Msg.MatchID)
			cancel()
		}
	})
	if err != nil {
		return toConnectError(err)
	}
	defer unsubscribe()

	var lastSeq int64
	if req.Msg.Backlog > 0 {
		backlog, err := s.channel.History(ctx, req.Msg.MatchID, req.Msg.Backlog)
		if err != nil {
			return toConnectError(err)
		}
		for _, msg := range backlog {
			if err := stream.Send(chatMessageToAPI(msg)); err != nil {
				return err
			}
			lastSeq = msg.Seq
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-live:
			if msg.Seq != 0 && msg.Seq <= lastSeq {
				continue
			}
			if err := stream.Send(chatMessageToAPI(msg)); err != nil {
				return err
			}
			lastSeq = max(lastSeq, msg.Seq)
		}
	}
}

func messagesToAPI(list []*models.ChatMessage) []*api.ChatMessage {
	out := make([]*api.ChatMessage, 0, len(list))
	for _, m := range list {
		out = append(out, chatMessageToAPI(m))
	}
	return out
}
