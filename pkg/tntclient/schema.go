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

package tntclient

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
)

// GetSchemaFunction returns the ddl of the whole cluster.
const GetSchemaFunction = "ddl.get_schema"

var errNoSpaces = errors.New("schema has no spaces section")

// ParseSchema decodes the result of GetSchemaFunction into space
// metadata keyed by space name.
func ParseSchema(data []any) (map[string]SpaceMetadata, error) {
	if len(data) == 0 {
		return nil, errors.New("empty schema response")
	}
	root, ok := asMap(data[0])
	if !ok {
		return nil, errors.Newf("unexpected schema type %T", data[0])
	}
	rawSpaces, ok := root["spaces"]
	if !ok {
		return nil, errNoSpaces
	}
	spaces, ok := asMap(rawSpaces)
	if !ok {
		if isEmptyTable(rawSpaces) {
			return map[string]SpaceMetadata{}, nil
		}
		return nil, errors.Newf("unexpected spaces type %T", rawSpaces)
	}

	result := make(map[string]SpaceMetadata, len(spaces))
	for name, raw := range spaces {
		space, err := parseSpace(name, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "space %s", name)
		}
		result[name] = space
	}
	return result, nil
}

func parseSpace(name string, raw any) (SpaceMetadata, error) {
	m, ok := asMap(raw)
	if !ok {
		return SpaceMetadata{}, errors.Newf("unexpected type %T", raw)
	}
	space := SpaceMetadata{
		Name:   name,
		Engine: asString(m["engine"]),
	}

	format, err := asSlice(m["format"])
	if err != nil {
		return SpaceMetadata{}, errors.Wrap(err, "format")
	}
	for i, rawField := range format {
		f, ok := asMap(rawField)
		if !ok {
			return SpaceMetadata{}, errors.Newf("format[%d]: unexpected type %T", i, rawField)
		}
		fieldName := asString(f["name"])
		if fieldName == "" {
			return SpaceMetadata{}, errors.Newf("format[%d]: field has no name", i)
		}
		space.Fields = append(space.Fields, FieldMetadata{
			Name:       fieldName,
			Type:       asString(f["type"]),
			Position:   i,
			IsNullable: asBool(f["is_nullable"]),
		})
	}

	indexes, err := asSlice(m["indexes"])
	if err != nil {
		return SpaceMetadata{}, errors.Wrap(err, "indexes")
	}
	for i, rawIndex := range indexes {
		idx, err := parseIndex(i, rawIndex)
		if err != nil {
			return SpaceMetadata{}, errors.Wrapf(err, "indexes[%d]", i)
		}
		space.Indexes = append(space.Indexes, idx)
	}
	sort.Slice(space.Indexes, func(i, j int) bool {
		return space.Indexes[i].ID < space.Indexes[j].ID
	})
	return space, nil
}

func parseIndex(pos int, raw any) (IndexMetadata, error) {
	m, ok := asMap(raw)
	if !ok {
		return IndexMetadata{}, errors.Newf("unexpected type %T", raw)
	}
	idx := IndexMetadata{
		ID:     pos,
		Name:   asString(m["name"]),
		Type:   asString(m["type"]),
		Unique: asBool(m["unique"]),
	}
	if id, ok := asInt(m["id"]); ok {
		idx.ID = id
	}
	parts, err := asSlice(m["parts"])
	if err != nil {
		return IndexMetadata{}, errors.Wrap(err, "parts")
	}
	for i, rawPart := range parts {
		p, ok := asMap(rawPart)
		if !ok {
			return IndexMetadata{}, errors.Newf("parts[%d]: unexpected type %T", i, rawPart)
		}
		path := asString(p["path"])
		if path == "" {
			path = asString(p["field"])
		}
		if path == "" {
			return IndexMetadata{}, errors.Newf("parts[%d]: part has no path", i)
		}
		idx.Parts = append(idx.Parts, IndexPart{
			Path:       path,
			Type:       asString(p["type"]),
			IsNullable: asBool(p["is_nullable"]),
		})
	}
	return idx, nil
}

// asMap accepts both map flavours produced by the msgpack decoder.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		res := make(map[string]any, len(m))
		for k, val := range m {
			res[fmt.Sprint(k)] = val
		}
		return res, true
	}
	return nil, false
}

// asSlice treats nil and empty Lua tables as empty arrays.
func asSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return s, nil
	}
	if isEmptyTable(v) {
		return nil, nil
	}
	return nil, errors.Newf("unexpected type %T", v)
}

func isEmptyTable(v any) bool {
	switch m := v.(type) {
	case map[string]any:
		return len(m) == 0
	case map[any]any:
		return len(m) == 0
	case []any:
		return len(m) == 0
	}
	return false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}
