package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var metricsAddr string

// metricsServeCmd exposes the Prometheus counters/histograms other
// subcommands populate via recordMetrics, for scraping (spec.md §2's
// "exposed for scraping by cmd/databridge metrics-serve"). Unlike every
// other subcommand this one blocks until the context is cancelled (SIGINT/
// SIGTERM), serving metrics from whatever this process has recorded.
var metricsServeCmd = &cobra.Command{
	Use:   "metrics-serve",
	Short: "Serve Prometheus metrics on --addr until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: metricsAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() { errCh <- server.ListenAndServe() }()

		fmt.Printf("metrics-serve listening on %s\n", metricsAddr)
		select {
		case <-cmd.Context().Done():
			return server.Close()
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

func init() {
	metricsServeCmd.Flags().StringVar(&metricsAddr, "addr", ":9107", "Address to serve /metrics on")
}
