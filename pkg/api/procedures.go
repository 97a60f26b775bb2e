package api

const (
	QueueServiceName = "picadito.v1.QueueService"
	MatchServiceName = "picadito.v1.MatchService"
	ChatServiceName  = "picadito.v1.ChatService"
)

// Procedure paths, as served over HTTP.
const (
	QueueJoinProcedure   = "/" + QueueServiceName + "/JoinQueue"
	QueueLeaveProcedure  = "/" + QueueServiceName + "/LeaveQueue"
	QueueStatusProcedure = "/" + QueueServiceName + "/GetQueueStatus"
	QueueStatsProcedure  = "/" + QueueServiceName + "/GetQueueStats"
	QueueFindProcedure   = "/" + QueueServiceName + "/FindMatch"

	MatchCreateProcedure    = "/" + MatchServiceName + "/CreateMatch"
	MatchGetProcedure       = "/" + MatchServiceName + "/GetMatch"
	MatchListProcedure      = "/" + MatchServiceName + "/ListMatches"
	MatchApplyProcedure     = "/" + MatchServiceName + "/ApplyToMatch"
	MatchDecideProcedure    = "/" + MatchServiceName + "/DecideApplicant"
	MatchAddManualProcedure = "/" + MatchServiceName + "/AddManualPlayer"
	MatchSetStatusProcedure = "/" + MatchServiceName + "/SetMatchStatus"
	MatchDeleteProcedure    = "/" + MatchServiceName + "/DeleteMatch"

	ChatSendProcedure      = "/" + ChatServiceName + "/SendMessage"
	ChatListProcedure      = "/" + ChatServiceName + "/ListMessages"
	ChatMarkReadProcedure  = "/" + ChatServiceName + "/MarkRead"
	ChatUnreadProcedure    = "/" + ChatServiceName + "/UnreadCount"
	ChatSubscribeProcedure = "/" + ChatServiceName + "/Subscribe"
)
