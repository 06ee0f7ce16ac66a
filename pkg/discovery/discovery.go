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

package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
)

// DefaultRouterRole is the replicaset role of crud routers.
const DefaultRouterRole = "crud-router"

// discoveryScript returns uuid -> {status, uuid, uri, priority} for every
// cluster member whose replicaset has the role passed as the first argument.
const discoveryScript = `local role = ...
local cartridge = require('cartridge')

local function table_contains(t, value)
    for _, v in pairs(t or {}) do
        if v == value then
            return true
        end
    end
    return false
end

local servers, err = cartridge.admin_get_servers()
if err ~= nil then
    error(err)
end

local routers = {}
for _, server in pairs(servers) do
    if server.replicaset ~= nil and table_contains(server.replicaset.roles, role) then
        routers[server.uuid] = {
            status = server.status,
            uuid = server.uuid,
            uri = server.uri,
            priority = server.priority,
        }
    end
end

return routers`

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// WithEvaluatorFactory replaces the way the bootstrap node is dialed.
func WithEvaluatorFactory(factory tntclient.EvaluatorFactory) Option {
	return func(d *Discoverer) {
		d.factory = factory
	}
}

// Discoverer resolves the routers of a cluster through a bootstrap node.
// It keeps nothing between calls.
type Discoverer struct {
	logger  *zap.Logger
	factory tntclient.EvaluatorFactory
}

func NewDiscoverer(opts ...Option) *Discoverer {
	d := &Discoverer{}
	for _, opt := range opts {
		opt(d)
	}
	d.adjust()
	return d
}

func (d *Discoverer) adjust() {
	d.logger = logutil.Adjust(d.logger).Named("discovery")
	if d.factory == nil {
		d.factory = tntclient.DialEvaluator
	}
}

// Discover asks bootstrap for every member with role and returns their
// addresses in no particular order. The transient connection to bootstrap
// is closed before Discover returns.
func (d *Discoverer) Discover(
	ctx context.Context,
	bootstrap string,
	cfg tntclient.ClientConfig,
	role string,
) (Topology, error) {
	if role == "" {
		role = DefaultRouterRole
	}
	ev, err := d.factory(ctx, bootstrap, cfg)
	if err != nil {
		return nil, moerr.NewDiscovery(ctx, err, "failed to connect to %s", bootstrap)
	}

	topology, err := d.discover(ctx, ev, role)
	if cerr := ev.Close(); cerr != nil {
		if err != nil {
			d.logger.Error("failed to release discovery connection",
				zap.String("bootstrap", bootstrap),
				zap.Error(cerr))
			return nil, err
		}
		return nil, moerr.NewDiscovery(ctx, cerr, "failed to release discovery connection")
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("routers discovered",
		zap.String("bootstrap", bootstrap),
		zap.String("role", role),
		zap.Strings("addresses", topology.Addresses()))
	return topology, nil
}

func (d *Discoverer) discover(ctx context.Context, ev tntclient.Evaluator, role string) (Topology, error) {
	data, err := ev.Eval(ctx, discoveryScript, []any{role})
	if err != nil {
		return nil, moerr.NewDiscovery(ctx, err, "failed to evaluate discovery script")
	}
	return parseTopology(ctx, data)
}

func parseTopology(ctx context.Context, data []any) (Topology, error) {
	if len(data) != 1 {
		return nil, moerr.NewDiscovery(ctx, nil, "incorrect result arity, expected 1, got %d", len(data))
	}

	var servers []any
	switch m := data[0].(type) {
	case map[string]any:
		for _, v := range m {
			servers = append(servers, v)
		}
	case map[any]any:
		for _, v := range m {
			servers = append(servers, v)
		}
	case []any:
		// an empty lua table is encoded as an empty array
		if len(m) != 0 {
			return nil, moerr.NewDiscovery(ctx, nil, "unexpected result, expected map, got array of %d", len(m))
		}
	default:
		return nil, moerr.NewDiscovery(ctx, nil, "unexpected result type %T", data[0])
	}
	if len(servers) == 0 {
		return nil, moerr.NewDiscovery(ctx, nil, "no servers found")
	}

	topology := make(Topology, 0, len(servers))
	for _, server := range servers {
		uri, ok := serverURI(server)
		if !ok {
			return nil, moerr.NewDiscovery(ctx, nil, "server has no uri: %v", server)
		}
		addr, err := ParseRouterAddress(uri)
		if err != nil {
			return nil, moerr.NewDiscovery(ctx, err, "failed to parse router uri %q", uri)
		}
		topology = append(topology, addr)
	}
	return topology, nil
}

func serverURI(server any) (string, bool) {
	var v any
	switch m := server.(type) {
	case map[string]any:
		v = m["uri"]
	case map[any]any:
		v = m["uri"]
	default:
		return "", false
	}
	switch uri := v.(type) {
	case string:
		return uri, uri != ""
	case []byte:
		return string(uri), len(uri) > 0
	case nil:
		return "", false
	default:
		return fmt.Sprint(uri), true
	}
}
