/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package xmldoc converts the in-memory schema document to and from its XML text form
// and runs the XML-to-SQL transform engines.
package xmldoc

import (
	"errors"
	"log/slog"

	"github.com/beevik/etree"

	"sqldesigner/internal/domain"
	applog "sqldesigner/internal/log"
)

// Document is the schema document owned by the application. Only its XML boundary is used here.
type Document interface {
	ToXML() string
	FromXML(root *etree.Element) error
	RealignLayout()
}

// Dialogs closes whatever modal the application has open after a successful hydration.
type Dialogs interface {
	CloseDialog()
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Alert(msg string)
}

// Transcoder moves the document across the XML boundary and reports parse failures
// through the notifier.
type Transcoder struct {
	doc  Document
	dlg  Dialogs
	note Notifier
}

func NewTranscoder(doc Document, dlg Dialogs, note Notifier) *Transcoder {
	return &Transcoder{doc: doc, dlg: dlg, note: note}
}

// Serialize returns the document's current XML.
func (t *Transcoder) Serialize() string { return t.doc.ToXML() }

// Parse reads literal XML text into a tree.
func Parse(text string) (*etree.Document, error) {
	tree := etree.NewDocument()
	if err := tree.ReadFromString(text); err != nil {
		return nil, &domain.ParseError{Msg: err.Error()}
	}
	return tree, nil
}

// FromText parses text and hydrates the document from it. A nil error means the
// document now holds the parsed content.
func (t *Transcoder) FromText(text string) error {
	tree, err := Parse(text)
	if err != nil {
		return t.report(err)
	}
	return t.FromTree(tree)
}

// FromTree hydrates the document from an already parsed tree.
func (t *Transcoder) FromTree(tree *etree.Document) error {
	if tree == nil || tree.Root() == nil {
		return t.report(&domain.ParseError{Msg: "Null document"})
	}
	if err := t.doc.FromXML(tree.Root()); err != nil {
		var pe *domain.ParseError
		if !errors.As(err, &pe) {
			pe = &domain.ParseError{Msg: err.Error()}
		}
		return t.report(pe)
	}
	if t.dlg != nil {
		t.dlg.CloseDialog()
	}
	return nil
}

func (t *Transcoder) report(err error) error {
	applog.WithComponent("xmldoc").Warn("xml rejected", slog.Any("err", err))
	if t.note != nil {
		t.note.Alert(err.Error())
	}
	return err
}
