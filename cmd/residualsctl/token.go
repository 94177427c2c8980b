package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/residuals/internal/auth"
	"github.com/mmynk/residuals/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		operator string
		email    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration).Generate(operator, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "Operator ID recorded on audit entries")
	cmd.Flags().StringVar(&email, "email", "", "Operator email")
	cmd.MarkFlagRequired("operator")
	return cmd
}
