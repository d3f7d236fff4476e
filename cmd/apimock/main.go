package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"restqa/internal/logging"
	"restqa/internal/mockapi"
)

var flags struct {
	addr       string
	basePath   string
	serverName string
	latency    time.Duration
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:          "apimock",
	Short:        "Serve the in-memory posts, users and books API",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.addr, "addr", ":8081", "listen address")
	f.StringVar(&flags.basePath, "base-path", "", "mount every route below this path, e.g. /api")
	f.StringVar(&flags.serverName, "server-name", "", "Server response header (default cloudflare)")
	f.DurationVar(&flags.latency, "latency", 0, "delay added to every response")
	f.StringVar(&flags.logLevel, "log-level", "info", "log level")
}

func serve(ctx context.Context) error {
	log := logging.New(flags.logLevel, os.Stderr, true)
	api := mockapi.New(mockapi.NewStore(), mockapi.Options{
		BasePath:   flags.basePath,
		ServerName: flags.serverName,
		Latency:    flags.latency,
		Log:        log,
	})
	srv := &http.Server{
		Addr:              flags.addr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", flags.addr).Str("base_path", flags.basePath).Msg("apimock listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
