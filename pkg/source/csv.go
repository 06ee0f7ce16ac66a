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
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/connector"
)

var _ RowSource = (*CSVSource)(nil)

// CSVSource reads rows from csv. The first record declares the columns as
// name:type, e.g. "id:bigint,name:varchar". An empty cell is a NULL.
type CSVSource struct {
	reader  *csv.Reader
	closer  io.Closer
	columns []connector.Column
	line    int
}

// NewCSVSource reads the header from r.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	ctx := context.TODO()
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, moerr.NewInvalidInput(ctx, "csv has no header")
	}
	if err != nil {
		return nil, moerr.NewInvalidInput(ctx, "bad csv header: %v", err)
	}
	columns := make([]connector.Column, 0, len(header))
	for _, h := range header {
		name, typeName, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, moerr.NewInvalidInput(ctx, "bad csv column %q, expected name:type", h)
		}
		typ, err := connector.ParseDataType(typeName)
		if err != nil {
			return nil, err
		}
		columns = append(columns, connector.Column{Name: name, Type: typ})
	}
	reader.FieldsPerRecord = len(columns)
	return &CSVSource{reader: reader, columns: columns, line: 1}, nil
}

// OpenCSVFile opens path as a CSVSource.
func OpenCSVFile(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, moerr.NewInvalidInput(context.TODO(), "can not open %s: %v", path, err)
	}
	src, err := NewCSVSource(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

func (s *CSVSource) Columns() []connector.Column {
	return s.columns
}

func (s *CSVSource) Next() ([]any, error) {
	ctx := context.TODO()
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	s.line++
	if err != nil {
		return nil, moerr.NewInvalidInput(ctx, "bad csv line %d: %v", s.line, err)
	}
	row := make([]any, len(record))
	for i, cell := range record {
		if cell == "" {
			continue
		}
		if row[i], err = parseValue(s.columns[i].Type, cell); err != nil {
			return nil, moerr.NewInvalidInput(ctx, "line %d, column %s: can not parse %q as %s",
				s.line, s.columns[i].Name, cell, s.columns[i].Type)
		}
	}
	return row, nil
}

func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
