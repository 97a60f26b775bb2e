package service

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/picadito/pkg/api"
)

// Register mounts every procedure of the three services on mux. The JSON
// codec is always installed; opts usually carry the interceptors.
func Register(mux *http.ServeMux, q *QueueService, m *MatchService, c *ChatService, opts ...connect.HandlerOption) {
	opts = append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)

	mux.Handle(api.QueueJoinProcedure, connect.NewUnaryHandler(api.QueueJoinProcedure, q.JoinQueue, opts...))
	mux.Handle(api.QueueLeaveProcedure, connect.NewUnaryHandler(api.QueueLeaveProcedure, q.LeaveQueue, opts...))
	mux.Handle(api.QueueStatusProcedure, connect.NewUnaryHandler(api.QueueStatusProcedure, q.GetQueueStatus, opts...))
	mux.Handle(api.QueueStatsProcedure, connect.NewUnaryHandler(api.QueueStatsProcedure, q.GetQueueStats, opts...))
	mux.Handle(api.QueueFindProcedure, connect.NewUnaryHandler(api.QueueFindProcedure, q.FindMatch, opts...))

	mux.Handle(api.MatchCreateProcedure, connect.NewUnaryHandler(api.MatchCreateProcedure, m.CreateMatch, opts...))
	mux.Handle(api.MatchGetProcedure, connect.NewUnaryHandler(api.MatchGetProcedure, m.GetMatch, opts...))
	mux.Handle(api.MatchListProcedure, connect.NewUnaryHandler(api.MatchListProcedure, m.ListMatches, opts...))
	mux.Handle(api.MatchApplyProcedure, connect.NewUnaryHandler(api.MatchApplyProcedure, m.ApplyToMatch, opts...))
	mux.Handle(api.MatchDecideProcedure, connect.NewUnaryHandler(api.MatchDecideProcedure, m.DecideApplicant, opts...))
	mux.Handle(api.MatchAddManualProcedure, connect.NewUnaryHandler(api.MatchAddManualProcedure, m.AddManualPlayer, opts...))
	mux.Handle(api.MatchSetStatusProcedure, connect.NewUnaryHandler(api.MatchSetStatusProcedure, m.SetMatchStatus, opts...))
	mux.Handle(api.MatchDeleteProcedure, connect.NewUnaryHandler(api.MatchDeleteProcedure, m.DeleteMatch, opts...))

	mux.Handle(api.ChatSendProcedure, connect.NewUnaryHandler(api.ChatSendProcedure, c.SendMessage, opts...))
	mux.Handle(api.ChatListProcedure, connect.NewUnaryHandler(api.ChatListProcedure, c.ListMessages, opts...))
	mux.Handle(api.ChatMarkReadProcedure, connect.NewUnaryHandler(api.ChatMarkReadProcedure, c.MarkRead, opts...))
	mux.Handle(api.ChatUnreadProcedure, connect.NewUnaryHandler(api.ChatUnreadProcedure, c.UnreadCount, opts...))
	mux.Handle(api.ChatSubscribeProcedure, connect.NewServerStreamHandler(api.ChatSubscribeProcedure, c.Subscribe, opts...))
}
