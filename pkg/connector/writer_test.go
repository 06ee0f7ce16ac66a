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
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/lni/goutils/leaktest"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/config"
	"github.com/matrixorigin/tntconnector/pkg/discovery"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
	"github.com/matrixorigin/tntconnector/pkg/tntclient/mock_tntclient"
	"github.com/matrixorigin/tntconnector/pkg/writer"
)

var routerAddrs = []string{"router-1:3301"}

type routerEvaluator struct {
	closed int
}

func (e *routerEvaluator) Eval(context.Context, string, []any) ([]any, error) {
	return []any{map[any]any{
		"uuid-1": map[any]any{"uuid": "uuid-1", "uri": "admin@router-1:3301", "status": "healthy"},
	}}, nil
}

func (e *routerEvaluator) Close() error {
	e.closed++
	return nil
}

func testDiscoverer(ev tntclient.Evaluator) *discovery.Discoverer {
	return discovery.NewDiscoverer(discovery.WithEvaluatorFactory(
		func(context.Context, string, tntclient.ClientConfig) (tntclient.Evaluator, error) {
			return ev, nil
		}))
}

func testConfig() config.ConnectorConfig {
	cfg := config.ConnectorConfig{
		Server:            "bootstrap:3301",
		User:              "admin",
		Space:             "test_space",
		DrainPollInterval: 5 * time.Millisecond,
	}
	cfg.Fill()
	return cfg
}

var upsertColumns = []Column{
	{Name: "id", Type: Integer},
	{Name: "name", Type: Varchar},
	{Name: "bucket_id", Type: Integer},
}

func runWriterTest(
	t *testing.T,
	adapter WriteModeAdapter,
	fn func(ctrl *gomock.Controller, client *mock_tntclient.MockClient, w *Writer),
) {
	defer leaktest.AfterTest(t)()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock_tntclient.NewMockClient(ctrl)
	connect := func(_ context.Context, addrs []string, cfg tntclient.ClientConfig) (tntclient.Client, error) {
		assert.Equal(t, routerAddrs, addrs)
		assert.Equal(t, "admin", cfg.User)
		return client, nil
	}
	w := NewWriter(testConfig(), adapter,
		WithDiscoverer(testDiscoverer(&routerEvaluator{})),
		WithClusterConnector(connect),
		WithSegment(1, 4))
	fn(ctrl, client, w)
}

func TestUpsertWriter(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(ctrl *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		future := mock_tntclient.NewMockFuture(ctrl)
		future.EXPECT().Wait().Return(nil).Times(1)
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Replace(gomock.Any(), "test_space", []any{1, "a", 10}).Return(future, nil).Times(1)
		client.EXPECT().Close().Return(nil).Times(1)

		require.NoError(t, w.Open(ctx, upsertColumns))
		assert.Equal(t, []string{"id", "name", "bucket_id"}, w.Binding().Columns())
		assert.True(t, w.WriteRow(ctx, []any{1, "a", 10}))
		assert.Equal(t, uint64(1), w.Stats().Total)

		require.NoError(t, w.Close(ctx))
		assert.Equal(t, writer.Stats{}, w.Stats())
		assert.Nil(t, w.Binding())
	})
}

func TestDeleteWriterKeyCountMismatch(t *testing.T) {
	runWriterTest(t, DeleteAdapter{}, func(_ *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Close().Return(nil).Times(1)

		err := w.Open(ctx, upsertColumns)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrSchemaMismatch))
		assert.Contains(t, err.Error(), "columns don't match tarantool primary key columns: [id], got: [id,name,bucket_id]")

		assert.False(t, w.WriteRow(ctx, []any{1, "a", 10}))
	})
}

func TestDeleteWriter(t *testing.T) {
	runWriterTest(t, DeleteAdapter{}, func(ctrl *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		future := mock_tntclient.NewMockFuture(ctrl)
		future.EXPECT().Wait().Return(nil).Times(2)
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Delete(gomock.Any(), "test_space", []any{1}).Return(future, nil)
		client.EXPECT().Delete(gomock.Any(), "test_space", []any{2}).Return(future, nil)
		client.EXPECT().Close().Return(nil)

		require.NoError(t, w.Open(ctx, []Column{{Name: "id", Type: Bigint}}))
		assert.True(t, w.WriteRow(ctx, []any{1}))
		assert.True(t, w.WriteRow(ctx, []any{2}))
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriterCloseReportsFailedWrites(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(ctrl *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		cause := errors.New("Duplicate key exists in unique index")
		ok := mock_tntclient.NewMockFuture(ctrl)
		ok.EXPECT().Wait().Return(nil)
		failed := mock_tntclient.NewMockFuture(ctrl)
		failed.EXPECT().Wait().Return(cause)

		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Replace(gomock.Any(), "test_space", []any{1, "a", 10}).Return(ok, nil)
		client.EXPECT().Replace(gomock.Any(), "test_space", []any{2, "b", 10}).Return(failed, nil)
		client.EXPECT().Close().Return(nil).Times(1)

		require.NoError(t, w.Open(ctx, upsertColumns))
		assert.True(t, w.WriteRow(ctx, []any{1, "a", 10}))
		assert.True(t, w.WriteRow(ctx, []any{2, "b", 10}))

		err := w.Close(ctx)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrDrainFailed))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, writer.Stats{}, w.Stats())
	})
}

func TestWriterReleaseErrorIsIgnored(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(_ *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Close().Return(errors.New("broken pipe")).Times(1)

		require.NoError(t, w.Open(ctx, upsertColumns))
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriteRowRejected(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(_ *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Replace(gomock.Any(), "test_space", []any{3, "c", 10}).
			Return(nil, errors.New("cluster client is closed"))
		client.EXPECT().Close().Return(nil)

		require.NoError(t, w.Open(ctx, upsertColumns))
		// wrong arity and wrong type never reach the client
		assert.False(t, w.WriteRow(ctx, []any{1, "a"}))
		assert.False(t, w.WriteRow(ctx, []any{"1", "a", 10}))
		assert.False(t, w.WriteRow(ctx, []any{3, "c", 10}))

		stats := w.Stats()
		assert.Equal(t, uint64(0), stats.Total)
		assert.Equal(t, uint64(0), stats.Active)
		assert.Equal(t, uint64(3), stats.Rejected)
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriterNotOpen(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(_ *gomock.Controller, _ *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		assert.False(t, w.WriteRow(ctx, []any{1, "a", 10}))
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriterOpenTwice(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(_ *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
		client.EXPECT().Close().Return(nil)

		require.NoError(t, w.Open(ctx, upsertColumns))
		err := w.Open(ctx, upsertColumns)
		assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriterReopen(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(ctrl *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		future := mock_tntclient.NewMockFuture(ctrl)
		future.EXPECT().Wait().Return(nil).AnyTimes()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil).Times(2)
		client.EXPECT().Replace(gomock.Any(), gomock.Any(), gomock.Any()).Return(future, nil).AnyTimes()
		client.EXPECT().Close().Return(nil).Times(2)

		require.NoError(t, w.Open(ctx, upsertColumns))
		first := w.session
		assert.True(t, w.WriteRow(ctx, []any{1, "a", 10}))
		require.NoError(t, w.Close(ctx))

		require.NoError(t, w.Open(ctx, upsertColumns))
		assert.NotEqual(t, first, w.session)
		assert.Equal(t, writer.Stats{}, w.Stats())
		assert.True(t, w.WriteRow(ctx, []any{2, "b", 10}))
		require.NoError(t, w.Close(ctx))
	})
}

func TestWriterOpenSpaceError(t *testing.T) {
	runWriterTest(t, UpsertAdapter{}, func(_ *gomock.Controller, client *mock_tntclient.MockClient, w *Writer) {
		ctx := context.Background()
		client.EXPECT().Space(gomock.Any(), "test_space").Return(tntclient.SpaceMetadata{}, moerr.NewNoSuchSpace(ctx, "test_space"))
		client.EXPECT().Close().Return(errors.New("close failed")).Times(1)

		err := w.Open(ctx, upsertColumns)
		assert.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchSpace))
	})
}

func TestWriterOpenDiscoveryError(t *testing.T) {
	defer leaktest.AfterTest(t)()
	connected := false
	w := NewWriter(testConfig(), UpsertAdapter{},
		WithDiscoverer(discovery.NewDiscoverer(discovery.WithEvaluatorFactory(
			func(context.Context, string, tntclient.ClientConfig) (tntclient.Evaluator, error) {
				return nil, errors.New("connection refused")
			}))),
		WithClusterConnector(func(context.Context, []string, tntclient.ClientConfig) (tntclient.Client, error) {
			connected = true
			return nil, nil
		}))
	err := w.Open(context.Background(), upsertColumns)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrDiscovery))
	assert.False(t, connected)
}

func TestWriterOpenConnectError(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ev := &routerEvaluator{}
	cause := errors.New("no active connections")
	w := NewWriter(testConfig(), UpsertAdapter{},
		WithDiscoverer(testDiscoverer(ev)),
		WithClusterConnector(func(context.Context, []string, tntclient.ClientConfig) (tntclient.Client, error) {
			return nil, cause
		}))
	err := w.Open(context.Background(), upsertColumns)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrConnect))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, ev.closed)
}

func TestNewWriterFromSource(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock_tntclient.NewMockClient(ctrl)
	client.EXPECT().Space(gomock.Any(), "test_space").Return(testSpace(), nil)
	client.EXPECT().Close().Return(nil)

	stubs := gostub.Stub(&connectCluster, func(_ context.Context, addrs []string, cfg tntclient.ClientConfig) (tntclient.Client, error) {
		assert.Equal(t, routerAddrs, addrs)
		assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
		return client, nil
	})
	defer stubs.Reset()

	src := config.MapSource{
		config.ServerKey:            "bootstrap:3301",
		config.RequestTimeoutKey:    "3000",
		config.DrainPollIntervalKey: "5",
	}
	w, err := NewWriterFromSource(src, "test_space", "delete", WithDiscoverer(testDiscoverer(&routerEvaluator{})))
	require.NoError(t, err)
	require.NoError(t, w.Open(context.Background(), []Column{{Name: "id", Type: Integer}}))
	require.NoError(t, w.Close(context.Background()))
}

func TestNewWriterFromSourceErrors(t *testing.T) {
	_, err := NewWriterFromSource(config.MapSource{}, "test_space", "upsert")
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	_, err = NewWriterFromSource(config.MapSource{config.ServerKey: "bootstrap:3301"}, "", "upsert")
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))

	_, err = NewWriterFromSource(config.MapSource{config.ServerKey: "bootstrap:3301"}, "test_space", "merge")
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
