// Copyright 2025 CoreSet Selection Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"log"
	"os"

	"github.com/nishloadmaster/coreset-selection/internal/config"
	"github.com/nishloadmaster/coreset-selection/internal/core/services"
	"github.com/nishloadmaster/coreset-selection/internal/core/workflow"
	"github.com/nishloadmaster/coreset-selection/internal/registry"
)

// StateManager holds the shared components of the application.
type StateManager struct {
	config   *config.Config
	registry *registry.Registry
	library  *services.LibraryService
	runner   *workflow.Runner
}

var state = &StateManager{}

// SetupOS points the config loader at the configs directory with the local
// runtime unless the environment already says otherwise.
func SetupOS() (err error) {
	if os.Getenv(config.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(config.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		err = os.Setenv(config.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the application configuration once and caches it on the
// state manager.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup environment: %v\n", err)
		}
		cfg := config.NewConfig()
		config.LoadConfig(cfg)
		state.config = cfg
	}
	return state.config
}

// InitState initializes the application state: the storage directories, the
// upload registry, the library service, and the extraction runner.
func InitState() {
	cfg := GetConfig()

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.MediaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create directory %s: %v\n", dir, err)
		}
	}

	reg, err := registry.Open(cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open upload registry: %v\n", err)
	}
	state.registry = reg
	state.library = services.NewLibraryService(cfg.Storage, reg)
	state.runner = workflow.NewRunner(cfg, reg)
}

// CloseState releases the resources held by the state manager.
func CloseState() {
	if state.registry != nil {
		_ = state.registry.Close()
	}
}
