/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"sqldesigner/internal/backend"
	applog "sqldesigner/internal/log"
	"sqldesigner/internal/storage"
	"sqldesigner/internal/xmldoc"
)

func serveCmd(a *app) *cobra.Command {
	var addr, dataDir, staticDir, store string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagram backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Server
			if addr != "" {
				sc.Addr = addr
			}
			if dataDir != "" {
				sc.DataDir = dataDir
			}
			if staticDir != "" {
				sc.StaticDir = staticDir
			}
			if store != "" {
				sc.Store = store
			}
			return serve(cmd.Context(), sc.Addr, sc.DataDir, sc.StaticDir, sc.Store, sc.PostgresDSN, sc.ImportDSN, sc.AuthSecret)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for the filesystem store")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory served ahead of the built-in transform artifacts")
	cmd.Flags().StringVar(&store, "store", "", "diagram store: fs or postgres")
	return cmd
}

func serve(ctx context.Context, addr, dataDir, staticDir, store, pgDSN, importDSN, secret string) error {
	l := applog.WithComponent("server")
	cfg := backend.ServerConfig{Addr: addr, StaticDir: staticDir, AuthSecret: secret}

	switch store {
	case "postgres":
		db, err := backend.OpenPG(ctx, pgDSN)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		pg, err := backend.NewPGStore(ctx, db)
		if err != nil {
			return err
		}
		cfg.Store = pg
		cfg.Ready = db.PingContext
	default:
		if dataDir == "" {
			dataDir = "data"
		}
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return err
		}
		ds, err := storage.OpenDiagramStore(abs)
		if err != nil {
			return fmt.Errorf("open diagram store: %w", err)
		}
		cfg.Store = ds
	}

	if importDSN != "" {
		idb, err := backend.OpenPG(ctx, importDSN)
		if err != nil {
			// the backend still serves diagrams; import answers 501
			l.Warn("import database unavailable", slog.Any("err", err))
		} else {
			defer func() { _ = idb.Close() }()
			cfg.Importer = &backend.PGImporter{DB: idb}
		}
	}

	srv := backend.NewServer(cfg)
	if err := srv.Seed(ctx, "default", xmldoc.DefaultDiagram()); err != nil {
		return fmt.Errorf("seed default diagram: %w", err)
	}
	l.Info("backend ready", slog.String("store", store), slog.Bool("import", cfg.Importer != nil))
	return srv.ListenAndServe(ctx)
}
