// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/config"
	"github.com/matrixorigin/tntconnector/pkg/connector"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
	"github.com/matrixorigin/tntconnector/pkg/source"
	"github.com/matrixorigin/tntconnector/pkg/writer"
)

type loadArg struct {
	cfg           string
	space         string
	csv           string
	dsn           string
	query         string
	segment       int
	totalSegments int
}

func loadCommand(mode, short string) *cobra.Command {
	arg := &loadArg{}
	cmd := &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), mode, arg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&arg.cfg, "cfg", "./etc/tnt-loader.toml", "toml configuration of the loader")
	cmd.Flags().StringVar(&arg.space, "space", "", "target space")
	cmd.Flags().StringVar(&arg.csv, "csv", "", "csv file to read, the header is name:type,...")
	cmd.Flags().StringVar(&arg.dsn, "dsn", "", "mysql protocol dsn to read from, used with --query")
	cmd.Flags().StringVar(&arg.query, "query", "", "query returning the rows to write")
	cmd.Flags().IntVar(&arg.segment, "segment", 0, "segment id, only used in logs")
	cmd.Flags().IntVar(&arg.totalSegments, "total-segments", 1, "number of segments, only used in logs")
	cmd.Flags().SortFlags = false
	_ = cmd.MarkFlagRequired("space")
	return cmd
}

func runLoad(ctx context.Context, mode string, arg *loadArg, out io.Writer, opts ...connector.Option) (err error) {
	fc, err := config.ParseFile(arg.cfg)
	if err != nil {
		return err
	}
	logutil.SetupLogger(&fc.Log)
	defer func() {
		_ = logutil.Sync()
	}()
	logger := logutil.GetGlobalLogger().Named("tnt-loader")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := writer.NewMetrics(reg)
	if addr := fc.Metrics.ListenAddress; addr != "" {
		srv := startMetricsServer(logger, addr, reg)
		defer func() {
			_ = srv.Close()
		}()
	}

	src, err := openSource(ctx, arg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	opts = append([]connector.Option{
		connector.WithLogger(logger),
		connector.WithMetrics(metrics),
		connector.WithSegment(arg.segment, arg.totalSegments),
	}, opts...)
	w, err := connector.NewWriterFromSource(fc.Source(), arg.space, mode, opts...)
	if err != nil {
		return err
	}
	if err := w.Open(ctx, src.Columns()); err != nil {
		return err
	}

	start := time.Now()
	var rows, rejected int
	var readErr error
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		rows++
		if !w.WriteRow(ctx, row) {
			rejected++
		}
	}
	stats := w.Stats()
	closeErr := w.Close(ctx)

	cost := time.Since(start)
	fmt.Fprintf(out, "%s %s: read %d rows, dispatched %d, rejected %d, cost %s\n",
		mode, arg.space, rows, stats.Total, rejected, cost)
	logutil.Info("load finished",
		zap.String("mode", mode),
		zap.String("space", arg.space),
		zap.Int("rows", rows),
		zap.Uint64("dispatched", stats.Total),
		zap.Int("rejected", rejected),
		zap.Duration("cost", cost))
	if rejected > 0 {
		logutil.Warn("rows were not accepted",
			zap.String("space", arg.space),
			zap.Int("rejected", rejected))
		readErr = multierr.Append(readErr,
			moerr.NewInvalidInput(ctx, "%d of %d rows were not accepted", rejected, rows))
	}
	return multierr.Append(readErr, closeErr)
}

func openSource(ctx context.Context, arg *loadArg) (source.RowSource, error) {
	switch {
	case arg.csv != "" && arg.dsn != "":
		return nil, moerr.NewBadConfig(ctx, "--csv and --dsn are mutually exclusive")
	case arg.csv != "":
		return source.OpenCSVFile(arg.csv)
	case arg.dsn != "":
		if arg.query == "" {
			return nil, moerr.NewBadConfig(ctx, "--query is required with --dsn")
		}
		return source.OpenSQLSource(ctx, arg.dsn, arg.query)
	}
	return nil, moerr.NewBadConfig(ctx, "one of --csv or --dsn is required")
}

func startMetricsServer(logger *zap.Logger, addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("address", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics server started", zap.String("address", addr))
	return srv
}
