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
	"strings"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
)

const (
	ModeUpsert = "upsert"
	ModeDelete = "delete"
)

// WriteModeAdapter decides how rows map onto a space and which request
// writes one row.
type WriteModeAdapter interface {
	// Mode returns the write mode name.
	Mode() string
	// Validate compares the external columns with the space and returns
	// the binding used until close.
	Validate(ctx context.Context, columns []Column, space tntclient.SpaceMetadata) (SchemaBinding, error)
	// Write dispatches the request for one validated row.
	Write(ctx context.Context, client tntclient.Client, space string, row []any) (tntclient.Future, error)
}

// NewAdapter returns the adapter of mode.
func NewAdapter(mode string) (WriteModeAdapter, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeUpsert:
		return UpsertAdapter{}, nil
	case ModeDelete:
		return DeleteAdapter{}, nil
	}
	return nil, moerr.NewBadConfig(context.TODO(), "unknown write mode %q, expected %s or %s", mode, ModeUpsert, ModeDelete)
}

var _ WriteModeAdapter = UpsertAdapter{}

// UpsertAdapter replaces whole tuples. Columns must match the space format
// in position order.
type UpsertAdapter struct{}

func (UpsertAdapter) Mode() string {
	return ModeUpsert
}

func (UpsertAdapter) Validate(ctx context.Context, columns []Column, space tntclient.SpaceMetadata) (SchemaBinding, error) {
	return bindColumns(ctx, columns, space.FieldNames(), "column")
}

func (UpsertAdapter) Write(ctx context.Context, client tntclient.Client, space string, row []any) (tntclient.Future, error) {
	return client.Replace(ctx, space, row)
}

var _ WriteModeAdapter = DeleteAdapter{}

// DeleteAdapter deletes by the full primary key. Columns must match the
// parts of the primary index in order.
type DeleteAdapter struct{}

func (DeleteAdapter) Mode() string {
	return ModeDelete
}

func (DeleteAdapter) Validate(ctx context.Context, columns []Column, space tntclient.SpaceMetadata) (SchemaBinding, error) {
	primary, ok := space.PrimaryIndex()
	if !ok {
		return nil, moerr.NewSchemaMismatch(ctx, "space %s has no primary index", space.Name)
	}
	return bindColumns(ctx, columns, primary.PartPaths(), "primary key column")
}

func (DeleteAdapter) Write(ctx context.Context, client tntclient.Client, space string, row []any) (tntclient.Future, error) {
	return client.Delete(ctx, space, row)
}
