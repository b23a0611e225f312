package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/metricship/internal/stub"
	"github.com/bft-labs/metricship/pkg/log"
)

func main() {
	var (
		addr      string
		failEvery int
		logLevel  string
	)

	root := &cobra.Command{
		Use:          "metricship-stub",
		Short:        "Local collection endpoint for trying out metricship",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewZerologAdapter(os.Stderr, logLevel)
			h := stub.NewHandler(failEvery, logger)

			srv := &http.Server{
				Addr:              addr,
				Handler:           h.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", log.String("addr", addr), log.Int("fail_every", failEvery))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			st := h.Stats()
			logger.Info("stopped",
				log.Int64("requests", st.Requests),
				log.Int64("rejected", st.Rejected),
				log.Int64("accepted", st.Accepted),
			)
			return nil
		},
	}

	root.Flags().StringVar(&addr, "addr", ":7101", "listen address")
	root.Flags().IntVar(&failEvery, "fail-every", 0, "answer 503 on every Nth publish request (0 = never)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
