package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/robolink/internal/auth"
	"github.com/danmuck/robolink/internal/config"
	"github.com/danmuck/robolink/internal/protocol/schema"
)

func credentialFlags(cmd *cobra.Command, username, password *string) {
	cmd.Flags().StringVarP(username, "username", "u", "", "Account name (default from config or ROBOLINK_USERNAME)")
	cmd.Flags().StringVarP(password, "password", "p", "", "Account password (default from config or ROBOLINK_PASSWORD)")
}

func resolveCredentials(cfg *config.ClientConfig, username, password string) (string, string) {
	if username == "" {
		username = cfg.Username
	}
	if password == "" {
		password = cfg.Password
	}
	return username, password
}

func loginCmd(cfg *config.ClientConfig) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and show the session schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, pass := resolveCredentials(cfg, username, password)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			sess, err := auth.NewClient(cfg.AuthURL, nil).Login(ctx, user, pass)
			if err != nil {
				return err
			}
			reg, err := schema.Load(sess.SchemaDesc)
			if err != nil {
				return fmt.Errorf("login schema: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logged in as %s (token %s)\n", user, maskToken(sess.Token))
			printProtocols(out, reg)
			return nil
		},
	}
	credentialFlags(cmd, &username, &password)
	return cmd
}

func registerCmd(cfg *config.ClientConfig) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, pass := resolveCredentials(cfg, username, password)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := auth.NewClient(cfg.AuthURL, nil).Register(ctx, user, pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s, log in to continue\n", user)
			return nil
		},
	}
	credentialFlags(cmd, &username, &password)
	return cmd
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
