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

package connector

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/config"
	"github.com/matrixorigin/tntconnector/pkg/discovery"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
	"github.com/matrixorigin/tntconnector/pkg/writer"
)

// ClusterConnector opens the client to the discovered routers.
type ClusterConnector func(ctx context.Context, addrs []string, cfg tntclient.ClientConfig) (tntclient.Client, error)

var connectCluster ClusterConnector = tntclient.Connect

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithDiscoverer sets how routers are found.
func WithDiscoverer(d *discovery.Discoverer) Option {
	return func(w *Writer) {
		w.discoverer = d
	}
}

// WithClusterConnector sets how the cluster client is opened.
func WithClusterConnector(connect ClusterConnector) Option {
	return func(w *Writer) {
		w.connect = connect
	}
}

// WithMetrics sets the write path collectors.
func WithMetrics(metrics *writer.Metrics) Option {
	return func(w *Writer) {
		w.metrics = metrics
	}
}

// WithSegment sets the segment of the host engine this writer serves. It
// is only used in logs.
func WithSegment(id, total int) Option {
	return func(w *Writer) {
		w.segment.id = id
		w.segment.total = total
	}
}

// Writer writes the rows of one external table segment into a space.
// Open, WriteRow and Close are called by a single producer.
type Writer struct {
	cfg     config.ConnectorConfig
	adapter WriteModeAdapter

	logger      *zap.Logger
	discoverer  *discovery.Discoverer
	connect     ClusterConnector
	metrics     *writer.Metrics
	coordinator *writer.Coordinator

	segment struct {
		id    int
		total int
	}

	// valid between Open and Close
	session string
	client  tntclient.Client
	columns []Column
	binding SchemaBinding
}

// NewWriter creates a Writer, cfg must be validated already.
func NewWriter(cfg config.ConnectorConfig, adapter WriteModeAdapter, opts ...Option) *Writer {
	w := &Writer{
		cfg:     cfg,
		adapter: adapter,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.adjust()
	w.coordinator = writer.NewCoordinator(
		writer.WithLogger(w.logger),
		writer.WithMode(adapter.Mode()),
		writer.WithSpace(cfg.Space),
		writer.WithMetrics(w.metrics),
	)
	return w
}

func (w *Writer) adjust() {
	w.logger = logutil.Adjust(w.logger).Named("connector").With(
		zap.String("space", w.cfg.Space),
		zap.String("mode", w.adapter.Mode()),
		zap.Int("segment", w.segment.id),
		zap.Int("total-segments", w.segment.total),
	)
	if w.discoverer == nil {
		w.discoverer = discovery.NewDiscoverer(discovery.WithLogger(w.logger))
	}
	if w.connect == nil {
		w.connect = connectCluster
	}
}

// NewWriterFromSource loads the configuration of space from src and creates
// a Writer for mode. Nothing is dialed.
func NewWriterFromSource(src config.Source, space, mode string, opts ...Option) (*Writer, error) {
	cfg, err := config.Load(src, space)
	if err != nil {
		return nil, err
	}
	adapter, err := NewAdapter(mode)
	if err != nil {
		return nil, err
	}
	return NewWriter(cfg, adapter, opts...), nil
}

// Open discovers the routers, connects to them and checks columns against
// the space. Nothing is left open when it fails.
func (w *Writer) Open(ctx context.Context, columns []Column) error {
	if w.client != nil {
		return moerr.NewInvalidState(ctx, "writer for space %s is already open", w.cfg.Space)
	}
	w.session = uuid.NewString()
	logger := w.logger.With(zap.String("session", w.session))
	logger.Info("opening for write")

	w.coordinator.Reset()
	clientCfg := w.cfg.ClientConfig()
	topology, err := w.discoverer.Discover(ctx, w.cfg.Server, clientCfg, w.cfg.Role)
	if err != nil {
		logger.Error("failed to discover routers", zap.Error(err))
		return err
	}

	addrs := topology.Addresses()
	client, err := w.connect(ctx, addrs, clientCfg)
	if err != nil {
		logger.Error("failed to connect to routers",
			zap.Strings("addresses", addrs),
			zap.Error(err))
		return moerr.NewConnect(ctx, err, "%v", addrs)
	}

	binding, err := w.bind(ctx, client, columns)
	if err != nil {
		logger.Error("failed to open for write", zap.Error(err))
		w.release(logger, client)
		return err
	}

	w.client = client
	w.columns = append([]Column(nil), columns...)
	w.binding = binding
	logger.Info("opened for write",
		zap.Strings("routers", addrs),
		zap.Strings("columns", binding.Columns()))
	return nil
}

func (w *Writer) bind(ctx context.Context, client tntclient.Client, columns []Column) (SchemaBinding, error) {
	space, err := client.Space(ctx, w.cfg.Space)
	if err != nil {
		return nil, err
	}
	return w.adapter.Validate(ctx, columns, space)
}

// WriteRow dispatches the write of one row and returns without waiting for
// it. It returns false when the row was not accepted.
func (w *Writer) WriteRow(ctx context.Context, row []any) bool {
	if w.client == nil {
		w.logger.Error("write on a writer that is not open",
			zap.Error(moerr.NewInvalidState(ctx, "writer for space %s is not open", w.cfg.Space)))
		return false
	}
	err := w.coordinator.Submit(func() (tntclient.Future, error) {
		values, err := ResolveRow(ctx, w.columns, row)
		if err != nil {
			return nil, err
		}
		return w.adapter.Write(ctx, w.client, w.cfg.Space, values)
	})
	if err != nil {
		w.logger.Error("exception during request",
			zap.String("session", w.session),
			zap.Error(err))
		return false
	}
	return true
}

// Close waits for the dispatched writes and releases the connection. It
// fails when any write failed. The counters are reset and the connection
// is released on every path, after the wait.
func (w *Writer) Close(ctx context.Context) error {
	logger := w.logger.With(zap.String("session", w.session))
	stats := w.coordinator.Stats()
	logger.Info("closing for write",
		zap.Uint64("total", stats.Total),
		zap.Uint64("active", stats.Active))

	defer func() {
		w.coordinator.Reset()
		if w.client != nil {
			w.release(logger, w.client)
		}
		w.client = nil
		w.columns = nil
		w.binding = nil
		logger.Info("closed for write")
	}()

	if err := w.coordinator.AwaitDrain(ctx, w.cfg.DrainPollInterval); err != nil {
		stats := w.coordinator.Stats()
		logger.Error("failed for write",
			zap.Uint64("failed", stats.Failed),
			zap.Uint64("active", stats.Active),
			zap.Error(err))
		return err
	}
	logger.Info("all writes completed")
	return nil
}

// Stats returns the counters of the current open.
func (w *Writer) Stats() writer.Stats {
	return w.coordinator.Stats()
}

// Binding returns the schema binding of the current open.
func (w *Writer) Binding() SchemaBinding {
	return w.binding
}

func (w *Writer) release(logger *zap.Logger, client tntclient.Client) {
	if err := client.Close(); err != nil {
		logger.Error("exception during closing tarantool client, ignored", zap.Error(err))
	}
}
