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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/connector"
	"github.com/matrixorigin/tntconnector/pkg/discovery"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
	"github.com/matrixorigin/tntconnector/pkg/tntclient/mock_tntclient"
)

const testConfig = `
[log]
level = "error"

[properties]
"tarantool.cartridge.server" = "bootstrap:3301"
"tarantool.cartridge.drain.poll-interval" = "5"
`

type bootstrapEvaluator struct{}

func (bootstrapEvaluator) Eval(context.Context, string, []any) ([]any, error) {
	return []any{map[any]any{"r1": map[any]any{"uri": "router-1:3301"}}}, nil
}

func (bootstrapEvaluator) Close() error {
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testOptions(client tntclient.Client) []connector.Option {
	return []connector.Option{
		connector.WithDiscoverer(discovery.NewDiscoverer(discovery.WithEvaluatorFactory(
			func(context.Context, string, tntclient.ClientConfig) (tntclient.Evaluator, error) {
				return bootstrapEvaluator{}, nil
			}))),
		connector.WithClusterConnector(func(context.Context, []string, tntclient.ClientConfig) (tntclient.Client, error) {
			return client, nil
		}),
	}
}

func testSpace() tntclient.SpaceMetadata {
	return tntclient.SpaceMetadata{
		Name: "users",
		Fields: []tntclient.FieldMetadata{
			{Name: "id", Position: 0},
			{Name: "name", Position: 1},
		},
		Indexes: []tntclient.IndexMetadata{
			{ID: 0, Name: "primary", Parts: []tntclient.IndexPart{{Path: "id"}}},
		},
	}
}

func TestRunLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	future := mock_tntclient.NewMockFuture(ctrl)
	future.EXPECT().Wait().Return(nil).Times(2)
	client := mock_tntclient.NewMockClient(ctrl)
	client.EXPECT().Space(gomock.Any(), "users").Return(testSpace(), nil)
	client.EXPECT().Replace(gomock.Any(), "users", []any{int64(1), "a"}).Return(future, nil)
	client.EXPECT().Replace(gomock.Any(), "users", []any{int64(2), nil}).Return(future, nil)
	client.EXPECT().Close().Return(nil)

	arg := &loadArg{
		cfg:   writeFile(t, "loader.toml", testConfig),
		space: "users",
		csv:   writeFile(t, "users.csv", "id:bigint,name:varchar\n1,a\n2,\n"),
	}
	var out bytes.Buffer
	require.NoError(t, runLoad(context.Background(), connector.ModeUpsert, arg, &out, testOptions(client)...))
	assert.Contains(t, out.String(), "upsert users: read 2 rows, dispatched 2, rejected 0")
}

func TestRunLoadFailedWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	future := mock_tntclient.NewMockFuture(ctrl)
	future.EXPECT().Wait().Return(errors.New("tuple not found"))
	client := mock_tntclient.NewMockClient(ctrl)
	client.EXPECT().Space(gomock.Any(), "users").Return(testSpace(), nil)
	client.EXPECT().Delete(gomock.Any(), "users", []any{int64(1)}).Return(future, nil)
	client.EXPECT().Close().Return(nil)

	arg := &loadArg{
		cfg:   writeFile(t, "loader.toml", testConfig),
		space: "users",
		csv:   writeFile(t, "keys.csv", "id:bigint\n1\n"),
	}
	var out bytes.Buffer
	err := runLoad(context.Background(), connector.ModeDelete, arg, &out, testOptions(client)...)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrDrainFailed))
}

func TestRunLoadRejectedRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mock_tntclient.NewMockClient(ctrl)
	client.EXPECT().Space(gomock.Any(), "users").Return(testSpace(), nil)
	client.EXPECT().Delete(gomock.Any(), "users", gomock.Any()).Return(nil, errors.New("cluster client is closed"))
	client.EXPECT().Close().Return(nil)

	arg := &loadArg{
		cfg:   writeFile(t, "loader.toml", testConfig),
		space: "users",
		csv:   writeFile(t, "keys.csv", "id:bigint\n1\n"),
	}
	var out bytes.Buffer
	err := runLoad(context.Background(), connector.ModeDelete, arg, &out, testOptions(client)...)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
	assert.Contains(t, out.String(), "rejected 1")
}

func TestRunLoadBadArgs(t *testing.T) {
	cfg := writeFile(t, "loader.toml", testConfig)
	csv := writeFile(t, "users.csv", "id:bigint\n")
	tests := []struct {
		name string
		arg  loadArg
	}{
		{name: "missing config", arg: loadArg{cfg: filepath.Join(t.TempDir(), "missing.toml"), space: "users", csv: csv}},
		{name: "no source", arg: loadArg{cfg: cfg, space: "users"}},
		{name: "two sources", arg: loadArg{cfg: cfg, space: "users", csv: csv, dsn: "root@tcp(127.0.0.1:6001)/db"}},
		{name: "dsn without query", arg: loadArg{cfg: cfg, space: "users", dsn: "root@tcp(127.0.0.1:6001)/db"}},
		{name: "blank space", arg: loadArg{cfg: cfg, csv: csv}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runLoad(context.Background(), connector.ModeUpsert, &tt.arg, &out)
			assert.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), "%v", err)
		})
	}
}

func TestRootCommand(t *testing.T) {
	cmd := rootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"upsert", "delete"}, names)

	upsert, _, err := cmd.Find([]string{"upsert"})
	require.NoError(t, err)
	assert.NotNil(t, upsert.Flags().Lookup("total-segments"))
}
