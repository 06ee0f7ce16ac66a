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

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
)

// FileConfig is the toml file read by tnt-loader.
//
//	[log]
//	level = "info"
//
//	[metrics]
//	listen-address = "127.0.0.1:9201"
//
//	[properties]
//	"tarantool.cartridge.server" = "127.0.0.1:3301"
type FileConfig struct {
	Log logutil.LogConfig `toml:"log"`

	Metrics struct {
		// ListenAddress serves /metrics when set
		ListenAddress string `toml:"listen-address"`
	} `toml:"metrics"`

	// Properties are the tarantool.cartridge.* keys
	Properties map[string]string `toml:"properties"`
}

// Source returns the properties as a configuration Source.
func (c *FileConfig) Source() Source {
	if c.Properties == nil {
		return MapSource{}
	}
	return MapSource(c.Properties)
}

// ParseFile decodes a toml configuration file.
func ParseFile(path string) (*FileConfig, error) {
	cfg := &FileConfig{}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, moerr.NewBadConfig(context.TODO(), "failed to parse %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, moerr.NewBadConfig(context.TODO(), "unknown keys in %s: %v", path, undecoded)
	}
	cfg.Log.Fill()
	return cfg, nil
}
