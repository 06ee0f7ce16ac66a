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

package source

import (
	"strconv"

	"github.com/matrixorigin/tntconnector/pkg/connector"
)

// RowSource produces the rows of an external table.
type RowSource interface {
	// Columns returns the column descriptors, in row order.
	Columns() []connector.Column
	// Next returns the next row, or io.EOF after the last one.
	Next() ([]any, error)
	Close() error
}

// parseValue converts the text form of a value of typ. Types without a
// native form are kept as text and rejected later by the resolver.
func parseValue(typ connector.DataType, s string) (any, error) {
	var (
		v   any
		err error
	)
	switch typ {
	case connector.Boolean:
		v, err = strconv.ParseBool(s)
	case connector.Bigint, connector.Integer, connector.Smallint:
		v, err = strconv.ParseInt(s, 10, 64)
	case connector.Real:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = float32(f)
	case connector.Float8:
		v, err = strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
