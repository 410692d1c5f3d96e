package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"guardian/internal/logger"
	"guardian/internal/mockbackend"
	"guardian/internal/transport"
)

func newMockBackendCmd(a *app) *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run an in-memory support API for local development",
		Long:  "Serves every support API route from memory with canned answers, so the client can be exercised without the real backend.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runMockBackend(ctx, a.cfg.MockAddr, a.cfg.HelpHost, delay)
		},
	}
	cmd.Flags().String("mock-addr", "", "listen address (default 127.0.0.1:8001)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "hold every answer for this long")
	return cmd
}

func runMockBackend(ctx context.Context, addr, helpHost string, delay time.Duration) error {
	l := logger.NewComponentLogger("mock-backend")
	srv := mockbackend.NewServer(
		mockbackend.NewStore(),
		mockbackend.WithReplier(mockbackend.DefaultReplier(helpHost)),
		mockbackend.WithDelay(delay),
		mockbackend.WithLogger(l),
	)
	e := srv.Echo()

	errCh := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", addr)
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	l.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the support API and its dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := transport.NewClient(a.cfg.APIURL, a.cfg.RequestTimeout)
			out := cmd.OutOrStdout()

			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "API:      %s (%s)\n", client.BaseURL(), health.Status)
			if health.Message != "" {
				fmt.Fprintf(out, "Message:  %s\n", health.Message)
			}

			status, err := client.FetchStatus(cmd.Context())
			if err != nil {
				return err
			}
			names := make([]string, 0, len(status.Services))
			for name := range status.Services {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				state := "down"
				if status.Services[name] {
					state = "up"
				}
				marker := ""
				if name == a.cfg.StatusDependency {
					marker = "  (" + a.cfg.StatusLabel + ")"
				}
				fmt.Fprintf(out, "  %-12s %s%s\n", name, state, marker)
			}
			return nil
		},
	}
}

func newIngestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Load the incident corpus into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := transport.NewClient(a.cfg.APIURL, a.cfg.RequestTimeout)
			resp, err := client.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents ingested\n", resp.Status, resp.DocumentsIngested)
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
