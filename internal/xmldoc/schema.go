/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package xmldoc

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Schema is a read model of the designer XML format:
//
//	<sql>
//	  <table name="" x="" y="">
//	    <row name="" null="0|1" autoincrement="0|1">
//	      <datatype/> <default/> <relation table="" row=""/> <comment/>
//	    </row>
//	    <key type="PRIMARY|UNIQUE|INDEX" name=""><part/></key>
//	    <comment/>
//	  </table>
//	</sql>
//
// Transform engines and the schema importer work on it; documents keep their own model.
type Schema struct {
	Tables []Table `json:"tables"`
}

type Table struct {
	Name    string `json:"name"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Comment string `json:"comment,omitempty"`
	Rows    []Row  `json:"rows"`
	Keys    []Key  `json:"keys"`
}

type Row struct {
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	Nullable      bool       `json:"nullable"`
	AutoIncrement bool       `json:"autoincrement"`
	Default       string     `json:"default"`
	HasDefault    bool       `json:"hasDefault"`
	Comment       string     `json:"comment,omitempty"`
	Relations     []Relation `json:"relations,omitempty"`
}

type Relation struct {
	Table string `json:"table"`
	Row   string `json:"row"`
}

type Key struct {
	Type  string   `json:"type"`
	Name  string   `json:"name,omitempty"`
	Parts []string `json:"parts"`
}

// Primary returns the primary key of t, if any.
func (t Table) Primary() (Key, bool) {
	for _, k := range t.Keys {
		if strings.EqualFold(k.Type, "PRIMARY") {
			return k, true
		}
	}
	return Key{}, false
}

// ReadSchema extracts the schema from a designer root element.
func ReadSchema(root *etree.Element) Schema {
	var s Schema
	if root == nil {
		return s
	}
	for _, te := range root.SelectElements("table") {
		t := Table{
			Name:    te.SelectAttrValue("name", ""),
			X:       atoi(te.SelectAttrValue("x", "0")),
			Y:       atoi(te.SelectAttrValue("y", "0")),
			Comment: childText(te, "comment"),
		}
		for _, re := range te.SelectElements("row") {
			r := Row{
				Name:          re.SelectAttrValue("name", ""),
				Type:          childText(re, "datatype"),
				Nullable:      re.SelectAttrValue("null", "0") == "1",
				AutoIncrement: re.SelectAttrValue("autoincrement", "0") == "1",
				Comment:       childText(re, "comment"),
			}
			if d := re.SelectElement("default"); d != nil {
				r.Default = strings.TrimSpace(d.Text())
				r.HasDefault = r.Default != "" && !strings.EqualFold(r.Default, "NULL")
			}
			for _, rel := range re.SelectElements("relation") {
				r.Relations = append(r.Relations, Relation{
					Table: rel.SelectAttrValue("table", ""),
					Row:   rel.SelectAttrValue("row", ""),
				})
			}
			t.Rows = append(t.Rows, r)
		}
		for _, ke := range te.SelectElements("key") {
			k := Key{Type: ke.SelectAttrValue("type", "INDEX"), Name: ke.SelectAttrValue("name", "")}
			for _, p := range ke.SelectElements("part") {
				k.Parts = append(k.Parts, strings.TrimSpace(p.Text()))
			}
			t.Keys = append(t.Keys, k)
		}
		s.Tables = append(s.Tables, t)
	}
	return s
}

// Document renders s in the designer format.
func (s Schema) Document() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("sql")
	for _, t := range s.Tables {
		te := root.CreateElement("table")
		te.CreateAttr("x", strconv.Itoa(t.X))
		te.CreateAttr("y", strconv.Itoa(t.Y))
		te.CreateAttr("name", t.Name)
		for _, r := range t.Rows {
			re := te.CreateElement("row")
			re.CreateAttr("name", r.Name)
			re.CreateAttr("null", boolAttr(r.Nullable))
			re.CreateAttr("autoincrement", boolAttr(r.AutoIncrement))
			re.CreateElement("datatype").SetText(r.Type)
			def := "NULL"
			if r.HasDefault {
				def = r.Default
			}
			re.CreateElement("default").SetText(def)
			for _, rel := range r.Relations {
				e := re.CreateElement("relation")
				e.CreateAttr("table", rel.Table)
				e.CreateAttr("row", rel.Row)
			}
			if r.Comment != "" {
				re.CreateElement("comment").SetText(r.Comment)
			}
		}
		for _, k := range t.Keys {
			ke := te.CreateElement("key")
			ke.CreateAttr("type", k.Type)
			ke.CreateAttr("name", k.Name)
			for _, p := range k.Parts {
				ke.CreateElement("part").SetText(p)
			}
		}
		if t.Comment != "" {
			te.CreateElement("comment").SetText(t.Comment)
		}
	}
	doc.Indent(2)
	return doc
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func boolAttr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
