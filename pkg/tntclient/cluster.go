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

package tntclient

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/tarantool/go-tarantool/v2"
	"github.com/tarantool/go-tarantool/v2/crud"
	"github.com/tarantool/go-tarantool/v2/pool"
	"go.uber.org/multierr"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
)

var errClientClosed = errors.New("cluster client is closed")

var _ Client = (*clusterClient)(nil)

// clusterClient balances crud requests over all routers.
type clusterClient struct {
	cfg  ClientConfig
	pool *pool.ConnectionPool

	closed atomic.Bool

	mu struct {
		sync.Mutex
		spaces map[string]SpaceMetadata
	}
}

// Connect opens a pooled connection to every router in addrs. It fails
// if none of them can be reached.
func Connect(ctx context.Context, addrs []string, cfg ClientConfig) (Client, error) {
	if len(addrs) == 0 {
		return nil, errors.New("no router addresses")
	}
	instances := make([]pool.Instance, 0, len(addrs))
	for _, addr := range addrs {
		instances = append(instances, pool.Instance{
			Name:   addr,
			Dialer: newDialer(addr, cfg),
			Opts:   newOpts(cfg),
		})
	}
	ctx, cancel := withTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	p, err := pool.Connect(ctx, instances)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to routers %v", addrs)
	}
	return &clusterClient{cfg: cfg, pool: p}, nil
}

func (c *clusterClient) Space(ctx context.Context, name string) (SpaceMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mu.spaces == nil {
		spaces, err := c.fetchSchema(ctx)
		if err != nil {
			return SpaceMetadata{}, err
		}
		c.mu.spaces = spaces
	}
	space, ok := c.mu.spaces[name]
	if !ok {
		return SpaceMetadata{}, moerr.NewNoSuchSpace(ctx, name)
	}
	return space, nil
}

func (c *clusterClient) fetchSchema(ctx context.Context) (map[string]SpaceMetadata, error) {
	if c.closed.Load() {
		return nil, errClientClosed
	}
	ctx, cancel := withTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()
	req := tarantool.NewCallRequest(GetSchemaFunction).Context(ctx)
	data, err := c.pool.Do(req, pool.ANY).Get()
	if err != nil {
		return nil, errors.Wrap(err, "fetch schema")
	}
	return ParseSchema(data)
}

func (c *clusterClient) Replace(_ context.Context, space string, tuple []any) (Future, error) {
	if c.closed.Load() {
		return nil, errClientClosed
	}
	if len(tuple) == 0 {
		return nil, errors.Newf("empty tuple for space %s", space)
	}
	req := crud.MakeReplaceRequest(space).Tuple(tuple)
	return crudFuture{fut: c.pool.Do(req, pool.ANY)}, nil
}

func (c *clusterClient) Delete(_ context.Context, space string, key []any) (Future, error) {
	if c.closed.Load() {
		return nil, errClientClosed
	}
	if len(key) == 0 {
		return nil, errors.Newf("empty key for space %s", space)
	}
	req := crud.MakeDeleteRequest(space).Key(key)
	return crudFuture{fut: c.pool.Do(req, pool.ANY)}, nil
}

func (c *clusterClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return multierr.Combine(c.pool.Close()...)
}

// crudFuture decodes the crud response so that router side errors fail
// the write.
type crudFuture struct {
	fut *tarantool.Future
}

func (f crudFuture) Wait() error {
	var res crud.Result
	return f.fut.GetTyped(&res)
}
