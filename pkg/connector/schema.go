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
)

// Column describes one column of the external table.
type Column struct {
	Name string
	Type DataType
}

// FieldBinding pairs an external column with the store field it is
// written to.
type FieldBinding struct {
	Column string
	Field  string
}

// SchemaBinding is built once per open and never changes until close.
type SchemaBinding []FieldBinding

// Columns returns the bound external column names in order.
func (b SchemaBinding) Columns() []string {
	names := make([]string, 0, len(b))
	for _, fb := range b {
		names = append(names, fb.Column)
	}
	return names
}

// bindColumns requires columns and fields to have the same length and
// pairwise equal names. what names the store side in errors.
func bindColumns(ctx context.Context, columns []Column, fields []string, what string) (SchemaBinding, error) {
	if len(columns) != len(fields) {
		names := make([]string, 0, len(columns))
		for _, c := range columns {
			names = append(names, c.Name)
		}
		return nil, moerr.NewSchemaMismatch(ctx,
			"columns don't match tarantool %ss: %s, got: %s",
			what, joinNames(fields), joinNames(names))
	}
	binding := make(SchemaBinding, 0, len(columns))
	for i, c := range columns {
		if c.Name != fields[i] {
			return nil, moerr.NewSchemaMismatch(ctx,
				"column %d (%s) not equal to tarantool %s with order, expected: %s",
				i, c.Name, what, fields[i])
		}
		binding = append(binding, FieldBinding{Column: c.Name, Field: fields[i]})
	}
	return binding, nil
}

func joinNames(names []string) string {
	return "[" + strings.Join(names, ",") + "]"
}
