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
	"sync"

	"github.com/beevik/etree"
)

// Grid used by RawDocument.RealignLayout.
const (
	layoutColumns = 4
	layoutOriginX = 20
	layoutOriginY = 20
	layoutStepX   = 240
	layoutStepY   = 220
)

// RawDocument is a Document that is nothing but its XML text. Front ends without
// a schema model of their own (the CLI) hold the diagram in one.
type RawDocument struct {
	mu  sync.Mutex
	xml string
}

func NewRawDocument(xml string) *RawDocument { return &RawDocument{xml: xml} }

func (d *RawDocument) ToXML() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.xml
}

func (d *RawDocument) FromXML(root *etree.Element) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.SetRoot(root.Copy())
	doc.Indent(2)
	s, err := doc.WriteToString()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.xml = s
	d.mu.Unlock()
	return nil
}

// RealignLayout places every table on a fixed grid in document order.
func (d *RawDocument) RealignLayout() {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(d.xml); err != nil || doc.Root() == nil {
		return
	}
	for i, t := range doc.Root().SelectElements("table") {
		t.CreateAttr("x", strconv.Itoa(layoutOriginX+(i%layoutColumns)*layoutStepX))
		t.CreateAttr("y", strconv.Itoa(layoutOriginY+(i/layoutColumns)*layoutStepY))
	}
	doc.Indent(2)
	if s, err := doc.WriteToString(); err == nil {
		d.xml = s
	}
}
