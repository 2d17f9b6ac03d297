/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type RemoteConfig struct {
	// XHRPath is the base the "backend" endpoint is resolved against.
	XHRPath string `yaml:"xhr_path"`
	// StaticPath is the base transform artifacts (db/<db>/output.*) are fetched from.
	StaticPath string `yaml:"static_path"`
	// TimeoutMs of 0 means no client timeout; a hung request stays pending.
	TimeoutMs   int  `yaml:"timeout_ms"`
	TLSInsecure bool `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LocalConfig struct {
	DBPath   string `yaml:"db_path"`
	Disabled bool   `yaml:"disabled"`
}

type TransformConfig struct {
	Engine string `yaml:"engine"` // "template" | "js" | "none"
	DB     string `yaml:"db"`     // artifact family, e.g. "postgresql"
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DataDir     string `yaml:"data_dir"`
	StaticDir   string `yaml:"static_dir"`
	Store       string `yaml:"store"` // "fs" | "postgres"
	PostgresDSN string `yaml:"postgres_dsn"`
	ImportDSN   string `yaml:"import_dsn"`
	AuthSecret  string `yaml:"auth_secret"`
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	General       GeneralConfig   `yaml:"general"`
	Remote        RemoteConfig    `yaml:"remote"`
	Local         LocalConfig     `yaml:"local"`
	Transform     TransformConfig `yaml:"transform"`
	Server        ServerConfig    `yaml:"server"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Remote:        RemoteConfig{XHRPath: "http://localhost:8000/", StaticPath: "http://localhost:8000/", TimeoutMs: 0},
		Local:         LocalConfig{DBPath: ""},
		Transform:     TransformConfig{Engine: "template", DB: "postgresql"},
		Server:        ServerConfig{Addr: ":8000", DataDir: "", Store: "fs"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvXHRPath         = "SQD_XHR_PATH"
	EnvStaticPath      = "SQD_STATIC_PATH"
	EnvRemoteTimeoutMs = "SQD_REMOTE_TIMEOUT_MS"
	EnvRemoteTLSInsec  = "SQD_TLS_INSECURE"
	EnvLocalDBPath     = "SQD_LOCAL_DB"
	EnvTransformEngine = "SQD_TRANSFORM_ENGINE"
	EnvTransformDB     = "SQD_DB"
	EnvServerAddr      = "SQD_ADDR"
	EnvServerDataDir   = "SQD_DATA_DIR"
	EnvServerStore     = "SQD_STORE"
	EnvPostgresDSN     = "SQD_PG_DSN"
	EnvImportDSN       = "SQD_IMPORT_DSN"
	EnvAuthSecret      = "SQD_AUTH_SECRET"
	EnvTelemetryOptIn  = "SQD_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SQD_LOG_LEVEL"
	EnvLogFormat = "SQD_LOG_FORMAT"
	EnvLogSource = "SQD_LOG_SOURCE"
	EnvLogFile   = "SQD_LOG_FILE"
)

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "SQLDesigner")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "SQLDesigner")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "sqldesigner")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "sqldesigner")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the per-user config file (if present), applies defaults and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file is not an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	if cfg.Local.DBPath == "" {
		if dir, derr := ConfigDir(); derr == nil {
			cfg.Local.DBPath = filepath.Join(dir, "local.sqlite")
		}
	}
	return cfg, nil
}

// Save writes the user config YAML to path.
func Save(path string, cfg AppConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

//go:embed schema.json
var schemaJSON []byte

// Validate checks cfg against the embedded JSON schema.
func Validate(cfg AppConfig) error {
	// Round-trip through YAML so the yaml field names are what gets validated.
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Remote.XHRPath != "" {
		dst.Remote.XHRPath = src.Remote.XHRPath
	}
	if src.Remote.StaticPath != "" {
		dst.Remote.StaticPath = src.Remote.StaticPath
	}
	if src.Remote.TimeoutMs != 0 {
		dst.Remote.TimeoutMs = src.Remote.TimeoutMs
	}
	dst.Remote.TLSInsecure = src.Remote.TLSInsecure
	if strings.TrimSpace(src.Local.DBPath) != "" {
		dst.Local.DBPath = strings.TrimSpace(src.Local.DBPath)
	}
	dst.Local.Disabled = src.Local.Disabled
	if src.Transform.Engine != "" {
		dst.Transform.Engine = strings.ToLower(strings.TrimSpace(src.Transform.Engine))
	}
	if src.Transform.DB != "" {
		dst.Transform.DB = strings.TrimSpace(src.Transform.DB)
	}
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.DataDir != "" {
		dst.Server.DataDir = src.Server.DataDir
	}
	if src.Server.StaticDir != "" {
		dst.Server.StaticDir = src.Server.StaticDir
	}
	if src.Server.Store != "" {
		dst.Server.Store = strings.ToLower(src.Server.Store)
	}
	if src.Server.PostgresDSN != "" {
		dst.Server.PostgresDSN = src.Server.PostgresDSN
	}
	if src.Server.ImportDSN != "" {
		dst.Server.ImportDSN = src.Server.ImportDSN
	}
	if src.Server.AuthSecret != "" {
		dst.Server.AuthSecret = src.Server.AuthSecret
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	str(EnvXHRPath, &cfg.Remote.XHRPath)
	str(EnvStaticPath, &cfg.Remote.StaticPath)
	if v := strings.TrimSpace(os.Getenv(EnvRemoteTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Remote.TimeoutMs = n
		}
	}
	if v := os.Getenv(EnvRemoteTLSInsec); v != "" {
		cfg.Remote.TLSInsecure = parseBool(v)
	}
	str(EnvLocalDBPath, &cfg.Local.DBPath)
	if v := os.Getenv(EnvTransformEngine); v != "" {
		cfg.Transform.Engine = strings.ToLower(strings.TrimSpace(v))
	}
	str(EnvTransformDB, &cfg.Transform.DB)
	str(EnvServerAddr, &cfg.Server.Addr)
	str(EnvServerDataDir, &cfg.Server.DataDir)
	if v := os.Getenv(EnvServerStore); v != "" {
		cfg.Server.Store = strings.ToLower(strings.TrimSpace(v))
	}
	str(EnvPostgresDSN, &cfg.Server.PostgresDSN)
	str(EnvImportDSN, &cfg.Server.ImportDSN)
	str(EnvAuthSecret, &cfg.Server.AuthSecret)
	if v := os.Getenv(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogSource); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	str(EnvLogFile, &cfg.Logging.File)
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	envs := map[string]string{
		"remote.xhr_path":          EnvXHRPath,
		"remote.static_path":       EnvStaticPath,
		"remote.timeout_ms":        EnvRemoteTimeoutMs,
		"remote.tls_insecure":      EnvRemoteTLSInsec,
		"local.db_path":            EnvLocalDBPath,
		"transform.engine":         EnvTransformEngine,
		"transform.db":             EnvTransformDB,
		"server.addr":              EnvServerAddr,
		"server.data_dir":          EnvServerDataDir,
		"server.store":             EnvServerStore,
		"server.postgres_dsn":      EnvPostgresDSN,
		"server.import_dsn":        EnvImportDSN,
		"server.auth_secret":       EnvAuthSecret,
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	env, ok := envs[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// EffectiveTimeout returns the client timeout. Zero disables it.
func (r RemoteConfig) EffectiveTimeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}
