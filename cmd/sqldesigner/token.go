/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sqldesigner/internal/backend"
	"sqldesigner/internal/config"
)

func tokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the bearer token sent to the backend",
	}
	var (
		subject string
		ttl     time.Duration
	)
	sign := &cobra.Command{
		Use:   "sign",
		Short: "Issue a token signed with server.auth_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Server.AuthSecret == "" {
				return errors.New("server.auth_secret is not set")
			}
			tok, err := backend.SignToken(a.cfg.Server.AuthSecret, subject, time.Now().Add(ttl))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	sign.Flags().StringVar(&subject, "subject", "designer", "token subject")
	sign.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [token]",
			Short: "Store the token in the OS keychain; an empty token removes it",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var tok string
				if len(args) == 1 {
					tok = args[0]
				} else {
					b, err := io.ReadAll(a.con.in)
					if err != nil {
						return err
					}
					tok = string(b)
				}
				return config.SetToken(strings.TrimSpace(tok))
			},
		},
		sign,
	)
	return cmd
}

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialise the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := a.configPath()
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p, err := a.configPath()
				if err != nil {
					return err
				}
				if err := config.Save(p, a.cfg); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) configPath() (string, error) {
	if a.cfgPath != "" {
		return a.cfgPath, nil
	}
	return config.ConfigPath()
}
