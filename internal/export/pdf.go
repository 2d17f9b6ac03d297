/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders generated SQL, and optionally a diagram overview, to PDF.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"sqldesigner/internal/xmldoc"
)

// PDFOptions controls PDF export. Units are millimetres.
type PDFOptions struct {
	Title string
	// FontSize of the SQL listing in points; 9 when zero.
	FontSize float64
	// Diagram adds a landscape overview page with one box per table when a schema is given.
	Diagram bool
}

type rgb struct{ R, G, B int }

var (
	boxStroke  = rgb{40, 40, 40}
	headerFill = rgb{220, 230, 245}
	relStroke  = rgb{150, 30, 30}
)

// WriteSQLPDF renders sql onto A4 pages and writes the document to w. It returns
// the number of pages written.
func WriteSQLPDF(w io.Writer, schema *xmldoc.Schema, sql string, opt PDFOptions) (int, error) {
	size := opt.FontSize
	if size <= 0 {
		size = 9
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("SQL Designer", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	if opt.Diagram && schema != nil && len(schema.Tables) > 0 {
		drawDiagram(pdf, tr, *schema)
	}

	pdf.AddPage()
	if opt.Title != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, tr(opt.Title), "", "L", false)
		pdf.Ln(2)
	}
	pdf.SetFont("Courier", "", size)
	// line height ~ 1.25 * size, converted from pt
	lh := size * 1.25 * 25.4 / 72
	pdf.MultiCell(0, lh, tr(strings.ReplaceAll(sql, "\t", "    ")), "", "L", false)

	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write pdf: %w", err)
	}
	return pdf.PageCount(), nil
}

// ExportSQLPDF writes the PDF to outPath through a temp file, creating parent directories.
func ExportSQLPDF(outPath string, schema *xmldoc.Schema, sql string, opt PDFOptions) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".export-*.pdf")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := WriteSQLPDF(f, schema, sql, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

const (
	boxW    = 160.0
	rowH    = 16.0
	margin  = 10.0
	pageW   = 297.0
	pageH   = 210.0
	designH = 12.0 // header text baseline offset in designer units
)

// drawDiagram places table boxes at their designer coordinates, scaled to fit
// one landscape page, and joins related columns with straight lines.
func drawDiagram(pdf *gofpdf.Fpdf, tr func(string) string, s xmldoc.Schema) {
	maxX, maxY := 0.0, 0.0
	for _, t := range s.Tables {
		maxX = max(maxX, float64(t.X)+boxW)
		maxY = max(maxY, float64(t.Y)+rowH*float64(len(t.Rows)+1))
	}
	scale := min((pageW-2*margin)/maxX, (pageH-2*margin-10)/maxY, 0.35)

	pdf.AddPageFormat("L", gofpdf.SizeType{Wd: pageW, Ht: pageH})
	type anchor struct{ x, y float64 }
	rows := map[string]anchor{}
	for _, t := range s.Tables {
		x := margin + float64(t.X)*scale
		y := margin + float64(t.Y)*scale
		w := boxW * scale
		h := rowH * scale
		setDraw(pdf, boxStroke)
		setFill(pdf, headerFill)
		pdf.SetLineWidth(0.2)
		pdf.Rect(x, y, w, h, "FD")
		pdf.Rect(x, y, w, h*float64(len(t.Rows)+1), "D")
		fs := max(designH*scale*72/25.4*0.6, 4)
		pdf.SetFont("Helvetica", "B", fs)
		pdf.Text(x+1, y+h*0.7, tr(t.Name))
		pdf.SetFont("Helvetica", "", fs)
		for i, r := range t.Rows {
			ry := y + h*float64(i+1)
			pdf.Text(x+1, ry+h*0.7, tr(r.Name+" "+r.Type))
			rows[t.Name+"."+r.Name] = anchor{x + w, ry + h/2}
		}
	}
	setDraw(pdf, relStroke)
	pdf.SetLineWidth(0.3)
	for _, t := range s.Tables {
		for _, r := range t.Rows {
			from, ok := rows[t.Name+"."+r.Name]
			if !ok {
				continue
			}
			for _, rel := range r.Relations {
				if to, ok := rows[rel.Table+"."+rel.Row]; ok {
					pdf.Line(from.x, from.y, to.x, to.y)
				}
			}
		}
	}
}

func setDraw(pdf *gofpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.R, c.G, c.B) }
func setFill(pdf *gofpdf.Fpdf, c rgb) { pdf.SetFillColor(c.R, c.G, c.B) }
