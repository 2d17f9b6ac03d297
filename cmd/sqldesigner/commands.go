/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sqldesigner/internal/export"
	"sqldesigner/internal/persist"
	"sqldesigner/internal/version"
	"sqldesigner/internal/xmldoc"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sqldesigner",
		Short:         "Save, load and export SQL designer diagrams",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default is the per-user config.yaml)")
	pf.StringVarP(&a.file, "file", "f", "diagram.xml", "diagram XML file")
	pf.StringVar(&a.db, "db", "", "transform artifact family, e.g. postgresql or mysql")
	pf.StringVar(&a.engine, "engine", "", "transform engine: template, js or none")

	root.AddCommand(
		remoteCmd(a, "save [keyword]", "Store the diagram on the backend", readsDoc, (*persist.Controller).ServerSave),
		remoteCmd(a, "load [keyword]", "Replace the diagram with one from the backend", replacesDoc, (*persist.Controller).ServerLoad),
		remoteCmd(a, "import [database]", "Build the diagram from a database schema known to the backend", replacesDoc, (*persist.Controller).ServerImport),
		quickSaveCmd(a),
		listCmd(a),
		localCmd(a),
		textCmd(a),
		sqlCmd(a),
		serveCmd(a),
		tokenCmd(a),
		configCmd(a),
		versionCmd(),
	)
	return root
}

// remoteCmd builds a command around one keyword-taking controller operation.
func remoteCmd(a *app, use, short string, mode docMode, start func(*persist.Controller, string) *persist.Op) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return a.runOp(cmd, mode, func(c *persist.Controller) *persist.Op { return start(c, name) })
		},
	}
}

// docMode says how an operation uses the --file document.
type docMode int

const (
	readsDoc docMode = iota
	replacesDoc
	ignoresDoc
)

// runOp opens the document, runs one operation and writes the document back
// when the operation replaced it.
func (a *app) runOp(cmd *cobra.Command, mode docMode, start func(*persist.Controller) *persist.Op) error {
	if err := a.openDocument(mode == readsDoc); err != nil {
		return err
	}
	c, err := a.controller()
	if err != nil {
		return err
	}
	out, err := a.await(cmd.Context(), start(c))
	if err != nil || out.Err != nil || mode != replacesDoc {
		return err
	}
	return a.writeDocument()
}

func quickSaveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quicksave",
		Short: "Save again under the last remote name (F2)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOp(cmd, readsDoc, func(c *persist.Controller) *persist.Op {
				op, _ := c.KeyPress(persist.KeyQuickSave)
				return op
			})
		},
	}
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List diagrams stored on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOp(cmd, ignoresDoc, (*persist.Controller).ServerList)
		},
	}
}

func localCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "local",
		Short: "Save, load and list diagrams in the local store",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "save",
			Short: "Save the diagram to the local store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runOp(cmd, readsDoc, (*persist.Controller).LocalSave)
			},
		},
		&cobra.Command{
			Use:   "load",
			Short: "Replace the diagram with one from the local store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runOp(cmd, replacesDoc, (*persist.Controller).LocalLoad)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List diagrams in the local store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runOp(cmd, ignoresDoc, (*persist.Controller).LocalList)
			},
		},
	)
	return cmd
}

func textCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Print the diagram XML or load it from text",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "save",
			Short: "Print the diagram XML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.runOp(cmd, readsDoc, (*persist.Controller).TextSave)
			},
		},
		&cobra.Command{
			Use:   "load [path]",
			Short: "Replace the diagram with XML read from path or stdin",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var (
					b   []byte
					err error
				)
				if len(args) == 1 && args[0] != "-" {
					b, err = os.ReadFile(args[0])
				} else {
					b, err = io.ReadAll(a.con.in)
				}
				if err != nil {
					return err
				}
				text := strings.TrimSpace(string(b))
				return a.runOp(cmd, replacesDoc, func(c *persist.Controller) *persist.Op { return c.TextLoad(text) })
			},
		},
	)
	return cmd
}

func sqlCmd(a *app) *cobra.Command {
	var (
		pdfPath string
		diagram bool
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Generate SQL for the diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.openDocument(true); err != nil {
				return err
			}
			c, err := a.controller()
			if err != nil {
				return err
			}
			out, err := a.await(cmd.Context(), c.TextSQL())
			if err != nil || out.Err != nil || pdfPath == "" {
				return err
			}
			var schema *xmldoc.Schema
			if tree, perr := xmldoc.Parse(a.doc.ToXML()); perr == nil {
				s := xmldoc.ReadSchema(tree.Root())
				schema = &s
			}
			title := strings.TrimSuffix(a.file, ".xml")
			return export.ExportSQLPDF(pdfPath, schema, out.Payload, export.PDFOptions{Title: title, Diagram: diagram})
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "also write the SQL to this PDF file")
	cmd.Flags().BoolVar(&diagram, "diagram", true, "add a table overview page to the PDF")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqldesigner %s\n", version.String())
		},
	}
}
