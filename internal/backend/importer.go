/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sqldesigner/internal/storage"
	"sqldesigner/internal/xmldoc"
)

// language=SQL
// dialect=PostgreSQL
const importColumnsSQL = `SELECT c.table_name, c.column_name, c.data_type, c.character_maximum_length,
       c.numeric_precision, c.numeric_scale, c.is_nullable, c.column_default
FROM information_schema.columns c
JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

// language=SQL
// dialect=PostgreSQL
const importKeysSQL = `SELECT tc.table_name, tc.constraint_name, tc.constraint_type, k.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage k
  ON k.constraint_schema = tc.constraint_schema AND k.constraint_name = tc.constraint_name AND k.table_name = tc.table_name
WHERE tc.table_schema = $1 AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
ORDER BY tc.table_name, tc.constraint_name, k.ordinal_position`

// language=SQL
// dialect=PostgreSQL
const importForeignKeysSQL = `SELECT k.table_name, k.column_name, u.table_name, u.column_name
FROM information_schema.referential_constraints r
JOIN information_schema.key_column_usage k
  ON k.constraint_schema = r.constraint_schema AND k.constraint_name = r.constraint_name
JOIN information_schema.key_column_usage u
  ON u.constraint_schema = r.unique_constraint_schema AND u.constraint_name = r.unique_constraint_name
 AND u.ordinal_position = k.position_in_unique_constraint
WHERE k.table_schema = $1
ORDER BY k.table_name, k.column_name`

// PGImporter reads a live Postgres schema through information_schema and renders it
// as a designer diagram. The requested "database" names a schema of the connected database.
type PGImporter struct {
	DB *sql.DB
}

func (im *PGImporter) Import(ctx context.Context, database string) ([]byte, error) {
	s, err := im.readSchema(ctx, database)
	if err != nil {
		return nil, err
	}
	if len(s.Tables) == 0 {
		return nil, storage.ErrNotFound
	}
	for i := range s.Tables {
		// Stacked diagonally; the client realigns after import.
		s.Tables[i].X = 20 + 30*i
		s.Tables[i].Y = 20 + 30*i
	}
	out, err := s.Document().WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("render diagram: %w", err)
	}
	return out, nil
}

func (im *PGImporter) readSchema(ctx context.Context, schema string) (xmldoc.Schema, error) {
	var s xmldoc.Schema
	idx := map[string]int{}
	table := func(name string) *xmldoc.Table {
		i, ok := idx[name]
		if !ok {
			i = len(s.Tables)
			idx[name] = i
			s.Tables = append(s.Tables, xmldoc.Table{Name: name})
		}
		return &s.Tables[i]
	}

	rows, err := im.DB.QueryContext(ctx, importColumnsSQL, schema)
	if err != nil {
		return s, fmt.Errorf("read columns: %w", err)
	}
	for rows.Next() {
		var (
			tname, cname, dtype, nullable string
			charLen, prec, scale          sql.NullInt64
			def                           sql.NullString
		)
		if err := rows.Scan(&tname, &cname, &dtype, &charLen, &prec, &scale, &nullable, &def); err != nil {
			_ = rows.Close()
			return s, err
		}
		r := xmldoc.Row{
			Name:     cname,
			Type:     sqlType(dtype, charLen, prec, scale),
			Nullable: nullable == "YES",
			Default:  "NULL",
		}
		if def.Valid {
			if strings.HasPrefix(def.String, "nextval(") {
				r.AutoIncrement = true
			} else {
				r.Default = def.String
				r.HasDefault = true
			}
		}
		t := table(tname)
		t.Rows = append(t.Rows, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return s, err
	}
	_ = rows.Close()

	rows, err = im.DB.QueryContext(ctx, importKeysSQL, schema)
	if err != nil {
		return s, fmt.Errorf("read keys: %w", err)
	}
	for rows.Next() {
		var tname, kname, ktype, col string
		if err := rows.Scan(&tname, &kname, &ktype, &col); err != nil {
			_ = rows.Close()
			return s, err
		}
		t := table(tname)
		typ := "UNIQUE"
		if ktype == "PRIMARY KEY" {
			typ = "PRIMARY"
		}
		if n := len(t.Keys); n > 0 && t.Keys[n-1].Name == kname {
			t.Keys[n-1].Parts = append(t.Keys[n-1].Parts, col)
			continue
		}
		t.Keys = append(t.Keys, xmldoc.Key{Type: typ, Name: kname, Parts: []string{col}})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return s, err
	}
	_ = rows.Close()

	rows, err = im.DB.QueryContext(ctx, importForeignKeysSQL, schema)
	if err != nil {
		return s, fmt.Errorf("read foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var tname, col, rtable, rcol string
		if err := rows.Scan(&tname, &col, &rtable, &rcol); err != nil {
			return s, err
		}
		t := table(tname)
		for i := range t.Rows {
			if t.Rows[i].Name == col {
				t.Rows[i].Relations = append(t.Rows[i].Relations, xmldoc.Relation{Table: rtable, Row: rcol})
			}
		}
	}
	return s, rows.Err()
}

// sqlType renders an information_schema type in the designer's datatype vocabulary.
func sqlType(dtype string, charLen, prec, scale sql.NullInt64) string {
	switch dtype {
	case "character varying":
		if charLen.Valid {
			return fmt.Sprintf("VARCHAR(%d)", charLen.Int64)
		}
		return "VARCHAR"
	case "character":
		if charLen.Valid {
			return fmt.Sprintf("CHAR(%d)", charLen.Int64)
		}
		return "CHAR"
	case "numeric":
		if prec.Valid && scale.Valid {
			return fmt.Sprintf("DECIMAL(%d,%d)", prec.Int64, scale.Int64)
		}
		return "DECIMAL"
	case "timestamp without time zone":
		return "TIMESTAMP"
	case "timestamp with time zone":
		return "TIMESTAMPTZ"
	case "double precision":
		return "DOUBLE"
	}
	return strings.ToUpper(dtype)
}
