package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/picadito/internal/auth"
	"github.com/mmynk/picadito/internal/config"
)

func newTokenCmd(cfg *config.App) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Print a signed bearer token for a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return errors.New("PICADITO_JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(args[0], name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	return cmd
}
