package api

import (
	"context"

	"connectrpc.com/connect"
)

// Client calls every Picadito procedure on a remote server.
type Client struct {
	joinQueue    *connect.Client[JoinQueueRequest, JoinQueueResponse]
	leaveQueue   *connect.Client[LeaveQueueRequest, LeaveQueueResponse]
	queueStatus  *connect.Client[GetQueueStatusRequest, GetQueueStatusResponse]
	queueStats   *connect.Client[GetQueueStatsRequest, GetQueueStatsResponse]
	findMatch    *connect.Client[FindMatchRequest, FindMatchResponse]
	createMatch  *connect.Client[CreateMatchRequest, CreateMatchResponse]
	getMatch     *connect.Client[GetMatchRequest, GetMatchResponse]
	listMatches  *connect.Client[ListMatchesRequest, ListMatchesResponse]
	applyToMatch *connect.Client[ApplyToMatchRequest, ApplyToMatchResponse]
	decide       *connect.Client[DecideApplicantRequest, DecideApplicantResponse]
	addManual    *connect.Client[AddManualPlayerRequest, AddManualPlayerResponse]
	setStatus    *connect.Client[SetMatchStatusRequest, SetMatchStatusResponse]
	deleteMatch  *connect.Client[DeleteMatchRequest, DeleteMatchResponse]
	sendMessage  *connect.Client[SendMessageRequest, SendMessageResponse]
	listMessages *connect.Client[ListMessagesRequest, ListMessagesResponse]
	markRead     *connect.Client[MarkReadRequest, MarkReadResponse]
	unreadCount  *connect.Client[UnreadCountRequest, UnreadCountResponse]
	subscribe    *connect.Client[SubscribeRequest, ChatMessage]
}

// NewClient builds a client for the server at baseURL. The JSON codec is
// always installed; opts are applied after it.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &Client{
		joinQueue:    connect.NewClient[JoinQueueRequest, JoinQueueResponse](httpClient, baseURL+QueueJoinProcedure, opts...),
		leaveQueue:   connect.NewClient[LeaveQueueRequest, LeaveQueueResponse](httpClient, baseURL+QueueLeaveProcedure, opts...),
		queueStatus:  connect.NewClient[GetQueueStatusRequest, GetQueueStatusResponse](httpClient, baseURL+QueueStatusProcedure, opts...),
		queueStats:   connect.NewClient[GetQueueStatsRequest, GetQueueStatsResponse](httpClient, baseURL+QueueStatsProcedure, opts...),
		findMatch:    connect.NewClient[FindMatchRequest, FindMatchResponse](httpClient, baseURL+QueueFindProcedure, opts...),
		createMatch:  connect.NewClient[CreateMatchRequest, CreateMatchResponse](httpClient, baseURL+MatchCreateProcedure, opts...),
		getMatch:     connect.NewClient[GetMatchRequest, GetMatchResponse](httpClient, baseURL+MatchGetProcedure, opts...),
		listMatches:  connect.NewClient[ListMatchesRequest, ListMatchesResponse](httpClient, baseURL+MatchListProcedure, opts...),
		applyToMatch: connect.NewClient[ApplyToMatchRequest, ApplyToMatchResponse](httpClient, baseURL+MatchApplyProcedure, opts...),
		decide:       connect.NewClient[DecideApplicantRequest, DecideApplicantResponse](httpClient, baseURL+MatchDecideProcedure, opts...),
		addManual:    connect.NewClient[AddManualPlayerRequest, AddManualPlayerResponse](httpClient, baseURL+MatchAddManualProcedure, opts...),
		setStatus:    connect.NewClient[SetMatchStatusRequest, SetMatchStatusResponse](httpClient, baseURL+MatchSetStatusProcedure, opts...),
		deleteMatch:  connect.NewClient[DeleteMatchRequest, DeleteMatchResponse](httpClient, baseURL+MatchDeleteProcedure, opts...),
		sendMessage:  connect.NewClient[SendMessageRequest, SendMessageResponse](httpClient, baseURL+ChatSendProcedure, opts...),
		listMessages: connect.NewClient[ListMessagesRequest, ListMessagesResponse](httpClient, baseURL+ChatListProcedure, opts...),
		markRead:     connect.NewClient[MarkReadRequest, MarkReadResponse](httpClient, baseURL+ChatMarkReadProcedure, opts...),
		unreadCount:  connect.NewClient[UnreadCountRequest, UnreadCountResponse](httpClient, baseURL+ChatUnreadProcedure, opts...),
		subscribe:    connect.NewClient[SubscribeRequest, ChatMessage](httpClient, baseURL+ChatSubscribeProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) JoinQueue(ctx context.Context, req *JoinQueueRequest) (*JoinQueueResponse, error) {
	return call(ctx, c.joinQueue, req)
}

func (c *Client) LeaveQueue(ctx context.Context, req *LeaveQueueRequest) (*LeaveQueueResponse, error) {
	return call(ctx, c.leaveQueue, req)
}

func (c *Client) GetQueueStatus(ctx context.Context, req *GetQueueStatusRequest) (*GetQueueStatusResponse, error) {
	return call(ctx, c.queueStatus, req)
}

func (c *Client) GetQueueStats(ctx context.Context, req *GetQueueStatsRequest) (*GetQueueStatsResponse, error) {
	return call(ctx, c.queueStats, req)
}

func (c *Client) FindMatch(ctx context.Context, req *FindMatchRequest) (*FindMatchResponse, error) {
	return call(ctx, c.findMatch, req)
}

func (c *Client) CreateMatch(ctx context.Context, req *CreateMatchRequest) (*CreateMatchResponse, error) {
	return call(ctx, c.createMatch, req)
}

func (c *Client) GetMatch(ctx context.Context, req *GetMatchRequest) (*GetMatchResponse, error) {
	return call(ctx, c.getMatch, req)
}

func (c *Client) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	return call(ctx, c.listMatches, req)
}

func (c *Client) ApplyToMatch(ctx context.Context, req *ApplyToMatchRequest) (*ApplyToMatchResponse, error) {
	return call(ctx, c.applyToMatch, req)
}

func (c *Client) DecideApplicant(ctx context.Context, req *DecideApplicantRequest) (*DecideApplicantResponse, error) {
	return call(ctx, c.decide, req)
}

func (c *Client) AddManualPlayer(ctx context.Context, req *AddManualPlayerRequest) (*AddManualPlayerResponse, error) {
	return call(ctx, c.addManual, req)
}

func (c *Client) SetMatchStatus(ctx context.Context, req *SetMatchStatusRequest) (*SetMatchStatusResponse, error) {
	return call(ctx, c.setStatus, req)
}

func (c *Client) DeleteMatch(ctx context.Context, req *DeleteMatchRequest) (*DeleteMatchResponse, error) {
	return call(ctx, c.deleteMatch, req)
}

func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	return call(ctx, c.sendMessage, req)
}

func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	return call(ctx, c.listMessages, req)
}

func (c *Client) MarkRead(ctx context.Context, req *MarkReadRequest) (*MarkReadResponse, error) {
	return call(ctx, c.markRead, req)
}

func (c *Client) UnreadCount(ctx context.Context, req *UnreadCountRequest) (*UnreadCountResponse, error) {
	return call(ctx, c.unreadCount, req)
}

// Subscribe opens a server stream of chat messages. The caller must Close it.
func (c *Client) Subscribe(ctx context.Context, req *SubscribeRequest) (*connect.ServerStreamForClient[ChatMessage], error) {
	return c.subscribe.CallServerStream(ctx, connect.NewRequest(req))
}

// WithBearerToken sets the Authorization header on every unary and streaming
// call made by the client.
func WithBearerToken(token string) connect.ClientOption {
	return connect.WithInterceptors(bearerInterceptor{header: "Bearer " + token})
}

type bearerInterceptor struct {
	header string
}

func (b bearerInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			req.Header().Set("Authorization", b.header)
		}
		return next(ctx, req)
	}
}

func (b bearerInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set("Authorization", b.header)
		return conn
	}
}

func (b bearerInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
