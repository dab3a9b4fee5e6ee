package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/hubsync/internal/hubtest"
)

func newFakeHubCmd(a *app) *cobra.Command {
	var addr, apiKey string
	var projects []string
	cmd := &cobra.Command{
		Use:   "fake-hub",
		Short: "Serve an in-memory Hub for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("--api-key is required")
			}
			server := hubtest.NewServer(apiKey, a.logger)
			for _, name := range projects {
				id := server.AddProject(name, "")
				a.logger.Info("seeded project", "name", name, "id", id)
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			httpServer := &http.Server{
				Handler:      server,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 60 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("fake hub listening", "addr", ln.Addr().String(), "organization_id", server.OrganizationID())
				errCh <- httpServer.Serve(ln)
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}
			a.logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key clients must present")
	cmd.Flags().StringArrayVar(&projects, "project", nil, "project to seed (repeatable)")
	return cmd
}
