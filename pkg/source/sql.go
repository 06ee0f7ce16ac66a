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
	"database/sql"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/multierr"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/connector"
)

var _ RowSource = (*SQLSource)(nil)

// mysqlTypes maps the type names reported by the mysql protocol.
var mysqlTypes = map[string]connector.DataType{
	"BIGINT":             connector.Bigint,
	"UNSIGNED BIGINT":    connector.Bigint,
	"INT":                connector.Integer,
	"UNSIGNED INT":       connector.Integer,
	"MEDIUMINT":          connector.Integer,
	"UNSIGNED MEDIUMINT": connector.Integer,
	"SMALLINT":           connector.Smallint,
	"TINYINT":            connector.Smallint,
	"BOOL":               connector.Boolean,
	"BOOLEAN":            connector.Boolean,
	"FLOAT":              connector.Real,
	"DOUBLE":             connector.Float8,
	"DECIMAL":            connector.Numeric,
	"CHAR":               connector.Bpchar,
	"VARCHAR":            connector.Varchar,
	"TEXT":               connector.Text,
	"TINYTEXT":           connector.Text,
	"MEDIUMTEXT":         connector.Text,
	"LONGTEXT":           connector.Text,
	"JSON":               connector.Text,
	"BLOB":               connector.Bytea,
	"VARBINARY":          connector.Bytea,
	"BINARY":             connector.Bytea,
	"DATE":               connector.Date,
	"DATETIME":           connector.Timestamp,
	"TIMESTAMP":          connector.Timestamp,
}

// SQLSource streams the result of a query.
type SQLSource struct {
	db      *sql.DB
	ownDB   bool
	rows    *sql.Rows
	columns []connector.Column
}

// OpenSQLSource connects to a mysql protocol server with dsn and runs
// query on it.
func OpenSQLSource(ctx context.Context, dsn, query string, args ...any) (*SQLSource, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, moerr.NewBadConfig(ctx, "invalid dsn: %v", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, moerr.NewBadConfig(ctx, "invalid dsn: %v", err)
	}
	src, err := NewSQLSource(ctx, db, query, args...)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	src.ownDB = true
	return src, nil
}

// NewSQLSource runs query on db. db stays open after Close.
func NewSQLSource(ctx context.Context, db *sql.DB, query string, args ...any) (*SQLSource, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, moerr.NewInvalidInput(ctx, "query failed: %v", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, multierr.Append(moerr.NewInvalidInput(ctx, "no column types: %v", err), rows.Close())
	}
	columns := make([]connector.Column, 0, len(types))
	for _, ct := range types {
		columns = append(columns, connector.Column{
			Name: ct.Name(),
			Type: sqlDataType(ct.DatabaseTypeName()),
		})
	}
	return &SQLSource{db: db, rows: rows, columns: columns}, nil
}

func sqlDataType(name string) connector.DataType {
	name = strings.ToUpper(strings.TrimSpace(name))
	if t, ok := mysqlTypes[name]; ok {
		return t
	}
	if t, err := connector.ParseDataType(name); err == nil {
		return t
	}
	return connector.Unknown
}

func (s *SQLSource) Columns() []connector.Column {
	return s.columns
}

func (s *SQLSource) Next() ([]any, error) {
	ctx := context.TODO()
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, moerr.NewInvalidInput(ctx, "read rows: %v", err)
		}
		return nil, io.EOF
	}
	values := make([]any, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := s.rows.Scan(dest...); err != nil {
		return nil, moerr.NewInvalidInput(ctx, "scan row: %v", err)
	}
	for i, v := range values {
		var text string
		switch x := v.(type) {
		case []byte:
			text = string(x)
		case string:
			text = x
		default:
			continue
		}
		parsed, err := parseValue(s.columns[i].Type, text)
		if err != nil {
			return nil, moerr.NewInvalidInput(ctx, "column %s: can not parse %q as %s",
				s.columns[i].Name, text, s.columns[i].Type)
		}
		values[i] = parsed
	}
	return values, nil
}

func (s *SQLSource) Close() error {
	err := s.rows.Close()
	if s.ownDB {
		err = multierr.Append(err, s.db.Close())
	}
	return err
}
