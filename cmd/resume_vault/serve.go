package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/resume-vault/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port        int
		root        string
		databaseURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference artifact store",
		Long: `Run an HTTP artifact store over a local vault directory. Accounts live in
PostgreSQL when --database-url (or DATABASE_URL) is set and in memory otherwise.
ADMIN_USERNAME and ADMIN_PASSWORD create the first administrator. JWT_SECRET is
required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, server.Config{
				Port:          port,
				Root:          root,
				DatabaseURL:   databaseURL,
				AdminUsername: os.Getenv("ADMIN_USERNAME"),
				AdminPassword: os.Getenv("ADMIN_PASSWORD"),
				Logger:        a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on")
	cmd.Flags().StringVar(&root, "root", "vault", "Vault directory holding the artifacts")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL for accounts (default $DATABASE_URL)")
	return cmd
}
