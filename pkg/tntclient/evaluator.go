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
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tarantool/go-tarantool/v2"
)

var _ Evaluator = (*nodeEvaluator)(nil)

type nodeEvaluator struct {
	conn *tarantool.Connection
	cfg  ClientConfig
}

// DialEvaluator connects to a single node, without reconnects.
func DialEvaluator(ctx context.Context, addr string, cfg ClientConfig) (Evaluator, error) {
	ctx, cancel := withTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, err := tarantool.Connect(ctx, newDialer(addr, cfg), newOpts(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", addr)
	}
	return &nodeEvaluator{conn: conn, cfg: cfg}, nil
}

func (e *nodeEvaluator) Eval(ctx context.Context, expr string, args []any) ([]any, error) {
	ctx, cancel := withTimeout(ctx, e.cfg.ReadTimeout)
	defer cancel()
	if args == nil {
		args = []any{}
	}
	req := tarantool.NewEvalRequest(expr).Args(args).Context(ctx)
	return e.conn.Do(req).Get()
}

func (e *nodeEvaluator) Close() error {
	return e.conn.Close()
}

func newDialer(addr string, cfg ClientConfig) tarantool.NetDialer {
	return tarantool.NetDialer{
		Address:  addr,
		User:     cfg.User,
		Password: cfg.Password,
	}
}

func newOpts(cfg ClientConfig) tarantool.Opts {
	return tarantool.Opts{
		Timeout:    cfg.RequestTimeout,
		SkipSchema: true,
	}
}

// withTimeout keeps an earlier deadline of ctx.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
