// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/pdasync/pkg/bind"
	"github.com/AleutianAI/pdasync/pkg/cache"
	"github.com/AleutianAI/pdasync/pkg/dpda"
	"github.com/AleutianAI/pdasync/pkg/logging"
	"github.com/AleutianAI/pdasync/pkg/session"
	"github.com/AleutianAI/pdasync/pkg/transport"
)

// Duration decodes YAML strings like "30s" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the pdactl configuration, loaded from an optional YAML file
// and overridable by PDA_BASE_URL.
type Config struct {
	BaseURL     string   `yaml:"base_url" validate:"required,url"`
	Timeout     Duration `yaml:"timeout"`
	SessionPath string   `yaml:"session_path"`
	LogLevel    string   `yaml:"log_level"`
	LogDir      string   `yaml:"log_dir"`
}

func defaultConfig() Config {
	return Config{
		BaseURL:  "http://localhost:8000",
		Timeout:  Duration(30 * time.Second),
		LogLevel: "info",
	}
}

// loadConfig reads path when it exists; a missing file is not an error,
// the defaults apply. PDA_BASE_URL wins over both.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if base := os.Getenv("PDA_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// App wires the full client stack for one process: session identity,
// request pipeline, API client, cache, and bindings.
type App struct {
	cfg      Config
	logger   *logging.Logger
	provider *session.Provider
	api      *dpda.Client
	bindings *bind.Bindings
}

// app is built once by the root command's PersistentPreRunE.
var app *App

func newApp(cfg Config) *App {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "pdactl",
		LogDir:  cfg.LogDir,
	})

	var providerOpts []session.ProviderOption
	providerOpts = append(providerOpts, session.WithLogger(logger.Slog()))
	if cfg.SessionPath != "" {
		providerOpts = append(providerOpts, session.WithPath(cfg.SessionPath))
	}
	provider := session.NewProvider(providerOpts...)

	t := transport.New(cfg.BaseURL, provider,
		transport.WithClientLogger(logger.Slog()),
		transport.WithTimeout(time.Duration(cfg.Timeout)),
	)
	api := dpda.NewClient(t)

	return &App{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		api:      api,
		bindings: bind.New(api, cache.New(), bind.WithLogger(logger.Slog())),
	}
}

// Close releases the session store and the log file.
func (a *App) Close() {
	if err := a.provider.Close(); err != nil {
		a.logger.Warn("closing session store", "error", err)
	}
	a.bindings.Cache().Clear()
	_ = a.logger.Close()
}
