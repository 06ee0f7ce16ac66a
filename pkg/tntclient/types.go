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

//go:generate mockgen -source=types.go -destination=mock_tntclient/types.go -package=mock_tntclient

package tntclient

import (
	"context"
	"time"
)

// ClientConfig is shared by the transient discovery client and the
// cluster client.
type ClientConfig struct {
	// User empty means guest.
	User     string
	Password string
	// ConnectTimeout bounds dialing a single node.
	ConnectTimeout time.Duration
	// ReadTimeout bounds blocking introspection calls (eval, schema).
	ReadTimeout time.Duration
	// RequestTimeout bounds every request sent over an established
	// connection.
	RequestTimeout time.Duration
}

// Evaluator is a short-lived connection to one node which can evaluate
// Lua. It is used once and then closed.
type Evaluator interface {
	// Eval evaluates expr with args and returns all the values it returns.
	Eval(ctx context.Context, expr string, args []any) ([]any, error)
	// Close closes the connection.
	Close() error
}

// EvaluatorFactory opens an Evaluator to addr.
type EvaluatorFactory func(ctx context.Context, addr string, cfg ClientConfig) (Evaluator, error)

// Future is the handle of a dispatched write.
type Future interface {
	// Wait blocks until the write reaches a terminal state and returns its
	// error, nil on success.
	Wait() error
}

// Client is the connection to the routers of a cluster.
type Client interface {
	// Space returns the metadata of the named space.
	Space(ctx context.Context, name string) (SpaceMetadata, error)
	// Replace inserts or replaces the full tuple.
	Replace(ctx context.Context, space string, tuple []any) (Future, error)
	// Delete removes the tuple with the full primary key.
	Delete(ctx context.Context, space string, key []any) (Future, error)
	// Close releases all router connections.
	Close() error
}

// SpaceMetadata describes a space as declared by the cluster ddl.
type SpaceMetadata struct {
	Name   string
	Engine string
	// Fields are ordered by Position.
	Fields []FieldMetadata
	// Indexes are ordered by ID, the primary index has ID 0.
	Indexes []IndexMetadata
}

type FieldMetadata struct {
	Name       string
	Type       string
	Position   int
	IsNullable bool
}

type IndexMetadata struct {
	ID     int
	Name   string
	Type   string
	Unique bool
	Parts  []IndexPart
}

type IndexPart struct {
	Path       string
	Type       string
	IsNullable bool
}

// PrimaryIndex returns the index with ID 0.
func (s SpaceMetadata) PrimaryIndex() (IndexMetadata, bool) {
	for _, idx := range s.Indexes {
		if idx.ID == 0 {
			return idx, true
		}
	}
	return IndexMetadata{}, false
}

// FieldNames returns the field names in position order.
func (s SpaceMetadata) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// PartPaths returns the part paths of the index in key order.
func (idx IndexMetadata) PartPaths() []string {
	paths := make([]string, 0, len(idx.Parts))
	for _, p := range idx.Parts {
		paths = append(paths, p.Path)
	}
	return paths
}
