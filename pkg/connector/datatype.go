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

// DataType is the type id of an external column, as defined by the
// postgres catalog.
type DataType int32

const (
	Boolean   DataType = 16
	Bytea     DataType = 17
	Bigint    DataType = 20
	Smallint  DataType = 21
	Integer   DataType = 23
	Text      DataType = 25
	Real      DataType = 700
	Float8    DataType = 701
	Bpchar    DataType = 1042
	Varchar   DataType = 1043
	Date      DataType = 1082
	Timestamp DataType = 1114
	Numeric   DataType = 1700
	Unknown   DataType = -1
)

var dataTypeNames = map[DataType]string{
	Boolean:   "BOOLEAN",
	Bytea:     "BYTEA",
	Bigint:    "BIGINT",
	Smallint:  "SMALLINT",
	Integer:   "INTEGER",
	Text:      "TEXT",
	Real:      "REAL",
	Float8:    "FLOAT8",
	Bpchar:    "BPCHAR",
	Varchar:   "VARCHAR",
	Date:      "DATE",
	Timestamp: "TIMESTAMP",
	Numeric:   "NUMERIC",
}

var dataTypeAliases = map[string]DataType{
	"bool":              Boolean,
	"boolean":           Boolean,
	"bytea":             Bytea,
	"bigint":            Bigint,
	"int8":              Bigint,
	"smallint":          Smallint,
	"int2":              Smallint,
	"int":               Integer,
	"int4":              Integer,
	"integer":           Integer,
	"text":              Text,
	"real":              Real,
	"float4":            Real,
	"float":             Float8,
	"float8":            Float8,
	"double":            Float8,
	"double precision":  Float8,
	"bpchar":            Bpchar,
	"char":              Bpchar,
	"varchar":           Varchar,
	"character varying": Varchar,
	"date":              Date,
	"timestamp":         Timestamp,
	"numeric":           Numeric,
	"decimal":           Numeric,
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Supported reports whether values of t can be written as is.
func (t DataType) Supported() bool {
	switch t {
	case Boolean, Bigint, Integer, Real, Float8, Text, Varchar:
		return true
	}
	return false
}

// ParseDataType parses a type name such as "bigint" or "varchar".
func ParseDataType(name string) (DataType, error) {
	if t, ok := dataTypeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return Unknown, moerr.NewInvalidInput(context.TODO(), "unknown data type %q", name)
}

// MapAndValidate checks that v can be stored as a value of type t and
// returns it. nil is a NULL and always passes.
func MapAndValidate(ctx context.Context, t DataType, v any) (any, error) {
	if !t.Supported() {
		return nil, moerr.NewUnsupportedDataType(ctx, t.String())
	}
	if v == nil {
		return nil, nil
	}
	var ok bool
	switch t {
	case Boolean:
		_, ok = v.(bool)
	case Bigint, Integer:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			ok = true
		}
	case Real, Float8:
		switch v.(type) {
		case float32, float64:
			ok = true
		}
	case Text, Varchar:
		_, ok = v.(string)
	}
	if !ok {
		return nil, moerr.NewInvalidInput(ctx, "value %v of type %T is not %s", v, v, t)
	}
	return v, nil
}

// ResolveRow validates every value of row against its column.
func ResolveRow(ctx context.Context, columns []Column, row []any) ([]any, error) {
	if len(row) != len(columns) {
		return nil, moerr.NewInvalidInput(ctx, "row has %d values, expected %d", len(row), len(columns))
	}
	values := make([]any, len(row))
	for i, v := range row {
		mapped, err := MapAndValidate(ctx, columns[i].Type, v)
		if err != nil {
			return nil, err
		}
		values[i] = mapped
	}
	return values, nil
}
