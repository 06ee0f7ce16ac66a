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

package config

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
)

const (
	ServerKey            = "tarantool.cartridge.server"
	UserKey              = "tarantool.cartridge.user"
	PasswordKey          = "tarantool.cartridge.password"
	ConnectTimeoutKey    = "tarantool.cartridge.timeout.connect"
	ReadTimeoutKey       = "tarantool.cartridge.timeout.read"
	RequestTimeoutKey    = "tarantool.cartridge.timeout.request"
	RoleKey              = "tarantool.cartridge.role"
	DrainPollIntervalKey = "tarantool.cartridge.drain.poll-interval"
)

const (
	defaultTimeoutMillis           = 5000
	defaultDrainPollIntervalMillis = 100
	defaultRouterRole              = "crud-router"
)

// Source is the host configuration: plain string lookups by key.
type Source interface {
	Get(key string) (string, bool)
}

// MapSource is a Source backed by a map.
type MapSource map[string]string

func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ConnectorConfig of one write connector instance
type ConnectorConfig struct {
	//bootstrap node used to discover routers, host:port
	Server string `toml:"server"`

	//empty user connects as guest
	User string `toml:"user"`

	Password string `toml:"password"`

	//target space
	Space string `toml:"space"`

	//replicaset role that marks routers. default: crud-router
	Role string `toml:"role"`

	//default: 5s
	ConnectTimeout time.Duration `toml:"connect-timeout"`

	//default: 5s
	ReadTimeout time.Duration `toml:"read-timeout"`

	//default: 5s
	RequestTimeout time.Duration `toml:"request-timeout"`

	//how often close checks for in-flight writes. default: 100ms
	DrainPollInterval time.Duration `toml:"drain-poll-interval"`
}

// Load reads the connector configuration for space from src. It fails
// before any network activity when a required value is missing or a
// numeric value can not be parsed.
func Load(src Source, space string) (ConnectorConfig, error) {
	ctx := context.TODO()
	cfg := ConnectorConfig{
		Server:   getString(src, ServerKey, ""),
		User:     getString(src, UserKey, ""),
		Password: getString(src, PasswordKey, ""),
		Space:    space,
		Role:     getString(src, RoleKey, ""),
	}
	var err error
	if cfg.ConnectTimeout, err = getMillis(ctx, src, ConnectTimeoutKey, defaultTimeoutMillis); err != nil {
		return ConnectorConfig{}, err
	}
	if cfg.ReadTimeout, err = getMillis(ctx, src, ReadTimeoutKey, defaultTimeoutMillis); err != nil {
		return ConnectorConfig{}, err
	}
	if cfg.RequestTimeout, err = getMillis(ctx, src, RequestTimeoutKey, defaultTimeoutMillis); err != nil {
		return ConnectorConfig{}, err
	}
	if cfg.DrainPollInterval, err = getMillis(ctx, src, DrainPollIntervalKey, defaultDrainPollIntervalMillis); err != nil {
		return ConnectorConfig{}, err
	}
	cfg.Fill()
	if err := cfg.Validate(); err != nil {
		return ConnectorConfig{}, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *ConnectorConfig) Validate() error {
	ctx := context.TODO()
	if strings.TrimSpace(c.Space) == "" {
		return moerr.NewBadConfig(ctx, "tarantool space must be set")
	}
	if strings.TrimSpace(c.Server) == "" {
		return moerr.NewBadConfig(ctx, "%s property must be set", ServerKey)
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 || c.RequestTimeout <= 0 {
		return moerr.NewBadConfig(ctx, "timeouts must be positive")
	}
	if c.DrainPollInterval <= 0 {
		return moerr.NewBadConfig(ctx, "drain poll interval must be positive")
	}
	return nil
}

// Fill sets defaults for the zero fields.
func (c *ConnectorConfig) Fill() {
	if c.Role == "" {
		c.Role = defaultRouterRole
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultTimeoutMillis * time.Millisecond
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultTimeoutMillis * time.Millisecond
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultTimeoutMillis * time.Millisecond
	}
	if c.DrainPollInterval == 0 {
		c.DrainPollInterval = defaultDrainPollIntervalMillis * time.Millisecond
	}
}

// ClientConfig returns the store client settings.
func (c *ConnectorConfig) ClientConfig() tntclient.ClientConfig {
	return tntclient.ClientConfig{
		User:           c.User,
		Password:       c.Password,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}

func getString(src Source, key, def string) string {
	if v, ok := src.Get(key); ok {
		return v
	}
	return def
}

func getMillis(ctx context.Context, src Source, key string, def int) (time.Duration, error) {
	v, ok := src.Get(key)
	if !ok || strings.TrimSpace(v) == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, moerr.NewBadConfig(ctx, "%s must be an integer, got %q", key, v)
	}
	return time.Duration(n) * time.Millisecond, nil
}
