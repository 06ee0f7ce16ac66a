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
	"net"
	"strconv"
	"strings"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
)

// RouterAddress is the network endpoint of one router.
type RouterAddress struct {
	Host string
	Port int
}

func (a RouterAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseRouterAddress parses host:port, [ipv6]:port, or a tarantool uri
// with a user[:password]@ prefix.
func ParseRouterAddress(uri string) (RouterAddress, error) {
	ctx := context.TODO()
	hostPort := strings.TrimSpace(uri)
	if i := strings.LastIndex(hostPort, "@"); i >= 0 {
		hostPort = hostPort[i+1:]
	}
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return RouterAddress{}, moerr.NewInvalidInput(ctx, "bad router address %q: %v", uri, err)
	}
	if host == "" {
		return RouterAddress{}, moerr.NewInvalidInput(ctx, "bad router address %q: empty host", uri)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return RouterAddress{}, moerr.NewInvalidInput(ctx, "bad router address %q: invalid port %q", uri, port)
	}
	return RouterAddress{Host: host, Port: p}, nil
}

// Topology is the set of routers found by one discovery.
type Topology []RouterAddress

// Addresses returns host:port strings.
func (t Topology) Addresses() []string {
	addrs := make([]string, 0, len(t))
	for _, a := range t {
		addrs = append(addrs, a.String())
	}
	return addrs
}
