// Package api defines the wire types of the Picadito RPC services and a typed
// Connect client for them. Messages are plain structs encoded as JSON.
package api

// Preferences is what a player asks for when joining the queue.
type Preferences struct {
	Format     string `json:"format"`
	Zone       string `json:"zone,omitempty"`
	SkillLevel string `json:"skillLevel,omitempty"`
	DateRange  string `json:"dateRange,omitempty"`
}

type QueueEntry struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Format     string `json:"format"`
	Zone       string `json:"zone"`
	SkillLevel string `json:"skillLevel"`
	DateRange  string `json:"dateRange"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`  // unix millis
	LastSeenAt int64  `json:"lastSeenAt"` // unix millis
}

type Location struct {
	Province     string  `json:"province,omitempty"`
	Locality     string  `json:"locality,omitempty"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	Address      string  `json:"address,omitempty"`
	VenueName    string  `json:"venueName,omitempty"`
	Lat          float64 `json:"lat,omitempty"`
	Lng          float64 `json:"lng,omitempty"`
}

type Cost struct {
	Total     float64 `json:"total,omitempty"`
	PerPlayer float64 `json:"perPlayer,omitempty"`
}

type AdmissionFilters struct {
	MinAge            int      `json:"minAge,omitempty"`
	MaxAge            int      `json:"maxAge,omitempty"`
	SkillLevel        string   `json:"skillLevel,omitempty"`
	RequiredPositions []string `json:"requiredPositions,omitempty"`
}

type ManualPlayer struct {
	Name    string `json:"name"`
	AddedBy string `json:"addedBy"`
	AddedAt int64  `json:"addedAt"` // unix millis
}

type Match struct {
	ID              string                  `json:"id"`
	FormatName      string                  `json:"formatName"`
	Format          string                  `json:"format"`
	MaxPlayers      int                     `json:"maxPlayers"`
	Players         []string                `json:"players"`
	AcceptedPlayers []string                `json:"acceptedPlayers"`
	Applicants      []string                `json:"applicants"`
	ManualPlayers   map[string]ManualPlayer `json:"manualPlayers,omitempty"`
	HostID          string                  `json:"hostId"`
	HostName        string                  `json:"hostName"`
	Date            string                  `json:"date,omitempty"`
	Time            string                  `json:"time,omitempty"`
	DurationMinutes int                     `json:"durationMinutes"`
	VenueStatus     string                  `json:"venueStatus"`
	Location        Location                `json:"location"`
	Visibility      string                  `json:"visibility"`
	Cost            Cost                    `json:"cost"`
	Filters         AdmissionFilters        `json:"admissionFilters"`
	Description     string                  `json:"description,omitempty"`
	Status          string                  `json:"status"`
	IsAutoMatched   bool                    `json:"isAutoMatched"`
	CreatedAt       int64                   `json:"createdAt"` // unix millis
	UpdatedAt       int64                   `json:"updatedAt"` // unix millis
}

type ChatMessage struct {
	ID          string `json:"id"`
	MatchID     string `json:"matchId"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderPhoto string `json:"senderPhoto,omitempty"`
	Text        string `json:"text"`
	SentAt      int64  `json:"sentAt"` // unix millis, server assigned
	Seq         int64  `json:"seq"`
	IsSystem    bool   `json:"isSystem"`
	Read        bool   `json:"read"`
}

// QueueService

type JoinQueueRequest struct {
	Preferences Preferences `json:"preferences"`
}

type JoinQueueResponse struct {
	Entry *QueueEntry `json:"entry"`
}

type LeaveQueueRequest struct {
	EntryID string `json:"entryId"`
}

type LeaveQueueResponse struct{}

type GetQueueStatusRequest struct{}

type GetQueueStatusResponse struct {
	// Entry is nil when the caller is not searching.
	Entry *QueueEntry `json:"entry,omitempty"`
}

type GetQueueStatsRequest struct{}

type GetQueueStatsResponse struct {
	Total        int            `json:"total"`
	ByFormat     map[string]int `json:"byFormat"`
	BySkillLevel map[string]int `json:"bySkillLevel"`
}

type FindMatchRequest struct {
	EntryID string `json:"entryId"`
	// Preferences defaults to the ones stored on the entry.
	Preferences *Preferences `json:"preferences,omitempty"`
}

type FindMatchResponse struct {
	// Match is nil while the caller has to keep waiting.
	Match *Match `json:"match,omitempty"`
}

// MatchService

type CreateMatchRequest struct {
	Format          string           `json:"format"`
	HostName        string           `json:"hostName"`
	Date            string           `json:"date,omitempty"`
	Time            string           `json:"time,omitempty"`
	DurationMinutes int              `json:"durationMinutes,omitempty"`
	VenueStatus     string           `json:"venueStatus,omitempty"`
	Location        Location         `json:"location"`
	Visibility      string           `json:"visibility,omitempty"`
	Cost            Cost             `json:"cost"`
	Filters         AdmissionFilters `json:"admissionFilters"`
	Description     string           `json:"description,omitempty"`
}

type CreateMatchResponse struct {
	Match           *Match `json:"match"`
	NoticeDelivered bool   `json:"noticeDelivered"`
}

type GetMatchRequest struct {
	MatchID string `json:"matchId"`
}

type GetMatchResponse struct {
	Match *Match `json:"match"`
}

type ListMatchesRequest struct {
	// Status defaults to "open".
	Status string `json:"status,omitempty"`
}

type ListMatchesResponse struct {
	Matches []*Match `json:"matches"`
}

type ApplyToMatchRequest struct {
	MatchID string `json:"matchId"`
}

type ApplyToMatchResponse struct{}

type DecideApplicantRequest struct {
	MatchID     string `json:"matchId"`
	UserID      string `json:"userId"`
	Action      string `json:"action"` // accept or reject
	DisplayName string `json:"displayName,omitempty"`
}

type DecideApplicantResponse struct {
	NoticeDelivered bool `json:"noticeDelivered"`
}

type AddManualPlayerRequest struct {
	MatchID string `json:"matchId"`
	Name    string `json:"name"`
}

type AddManualPlayerResponse struct {
	PlayerID string `json:"playerId"`
}

type SetMatchStatusRequest struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"`
}

type SetMatchStatusResponse struct {
	Match           *Match `json:"match"`
	NoticeDelivered bool   `json:"noticeDelivered"`
}

type DeleteMatchRequest struct {
	MatchID string `json:"matchId"`
}

type DeleteMatchResponse struct{}

// ChatService

type SendMessageRequest struct {
	MatchID     string `json:"matchId"`
	Text        string `json:"text"`
	SenderPhoto string `json:"senderPhoto,omitempty"`
}

type SendMessageResponse struct {
	Message *ChatMessage `json:"message"`
}

type ListMessagesRequest struct {
	MatchID string `json:"matchId"`
	Limit   int    `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages []*ChatMessage `json:"messages"`
}

type MarkReadRequest struct {
	MatchID string `json:"matchId"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type UnreadCountRequest struct {
	MatchID string `json:"matchId"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type SubscribeRequest struct {
	MatchID string `json:"matchId"`
	// Backlog is how many past messages to send before live ones.
	Backlog int `json:"backlog,omitempty"`
}
