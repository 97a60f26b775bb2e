package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/picadito/internal/config"
	"github.com/mmynk/picadito/internal/errs"
	"github.com/mmynk/picadito/internal/matchmaking"
	"github.com/mmynk/picadito/internal/models"
	"github.com/mmynk/picadito/pkg/api"
)

type searchFlags struct {
	server     string
	token      string
	format     string
	zone       string
	skillLevel string
	dateRange  string
}

func newSearchCmd(cfg *config.App) *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Join the queue on a server and wait until a match is formed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.token == "" {
				return errors.New("--token is required")
			}
			client := api.NewClient(http.DefaultClient, strings.TrimRight(f.server, "/"), api.WithBearerToken(f.token))
			return runSearch(cmd, client, f, matchmaking.SessionConfig{
				Interval: cfg.PollInterval,
				Jitter:   cfg.PollJitter,
			})
		},
	}
	cmd.Flags().StringVar(&f.server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token (see the token command)")
	cmd.Flags().StringVar(&f.format, "format", string(models.FiveASide), "five-a-side, seven-a-side or eleven-a-side")
	cmd.Flags().StringVar(&f.zone, "zone", "", "preferred zone, empty for any")
	cmd.Flags().StringVar(&f.skillLevel, "skill", string(models.SkillAny), "beginner, intermediate, advanced or any")
	cmd.Flags().StringVar(&f.dateRange, "when", string(models.DateThisWeek), "today, this-week or this-month")
	return cmd
}

func runSearch(cmd *cobra.Command, client *api.Client, f searchFlags, sessionCfg matchmaking.SessionConfig) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	joined, err := client.JoinQueue(ctx, &api.JoinQueueRequest{Preferences: api.Preferences{
		Format:     f.format,
		Zone:       f.zone,
		SkillLevel: f.skillLevel,
		DateRange:  f.dateRange,
	}})
	if err != nil {
		return fmt.Errorf("join queue: %w", err)
	}
	entry := queueEntryFromAPI(joined.Entry)
	fmt.Fprintf(out, "queued as %s, looking for a %s match...\n", entry.ID, entry.Format.DisplayName())

	remote := &remoteQueue{client: client}
	session := matchmaking.NewSearchSession(entry, entry.Preferences(), remote, remote, sessionCfg)
	if err := session.Start(ctx); err != nil {
		return err
	}

	match, err := session.Wait(ctx)
	if match != nil {
		fmt.Fprintf(out, "match %s formed: %s on %s at %s with %d players\n",
			match.ID, match.FormatName, match.Date, match.Time, len(match.Players))
		return nil
	}

	// Interrupted or lost: make sure the entry does not linger.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if stopErr := session.Stop(stopCtx); stopErr != nil {
		fmt.Fprintf(out, "could not leave the queue: %v\n", stopErr)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "search cancelled")
		return nil
	}
	return err
}

// remoteQueue drives a SearchSession against a remote server.
type remoteQueue struct {
	client *api.Client
}

func (r *remoteQueue) TryFormMatch(ctx context.Context, entry *models.QueueEntry, prefs models.Preferences) (*matchmaking.Formation, error) {
	resp, err := r.client.FindMatch(ctx, &api.FindMatchRequest{
		EntryID: entry.ID,
		Preferences: &api.Preferences{
			Format:     string(prefs.Format),
			Zone:       prefs.Zone,
			SkillLevel: string(prefs.SkillLevel),
			DateRange:  string(prefs.DateRange),
		},
	})
	if connect.CodeOf(err) == connect.CodeNotFound {
		return nil, fmt.Errorf("%w: %v", errs.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	if resp.Match == nil {
		return nil, nil
	}
	return &matchmaking.Formation{Match: matchFromAPI(resp.Match)}, nil
}

func (r *remoteQueue) Leave(ctx context.Context, entryID string) error {
	_, err := r.client.LeaveQueue(ctx, &api.LeaveQueueRequest{EntryID: entryID})
	return err
}

func queueEntryFromAPI(e *api.QueueEntry) *models.QueueEntry {
	return &models.QueueEntry{
		ID:         e.ID,
		UserID:     e.UserID,
		Format:     models.Format(e.Format),
		Zone:       e.Zone,
		SkillLevel: models.SkillLevel(e.SkillLevel),
		DateRange:  models.DateRange(e.DateRange),
		Status:     models.QueueStatus(e.Status),
		CreatedAt:  time.UnixMilli(e.CreatedAt),
	}
}

// matchFromAPI keeps what the search command prints.
func matchFromAPI(m *api.Match) *models.Match {
	return &models.Match{
		ID:            m.ID,
		FormatName:    m.FormatName,
		Format:        models.Format(m.Format),
		MaxPlayers:    m.MaxPlayers,
		Players:       m.Players,
		HostID:        m.HostID,
		HostName:      m.HostName,
		Date:          m.Date,
		Time:          m.Time,
		Status:        models.MatchStatus(m.Status),
		IsAutoMatched: m.IsAutoMatched,
	}
}
