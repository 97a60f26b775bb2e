package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/picadito/internal/clock"
	"github.com/mmynk/picadito/internal/config"
	"github.com/mmynk/picadito/internal/events"
	"github.com/mmynk/picadito/internal/queue"
	"github.com/mmynk/picadito/internal/storage/sqlite"
)

func newSweepCmd(cfg *config.App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete stale queue entries from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			defer store.Close()

			q := queue.NewRepository(store, clock.Real{}, cfg.QueueStaleAfter, events.NewEmitter(nil, nil), nil)
			n, err := q.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale queue entries\n", n)
			return nil
		},
	}
}
