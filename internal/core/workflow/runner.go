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

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nishloadmaster/coreset-selection/internal/config"
	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
	"github.com/nishloadmaster/coreset-selection/internal/registry"
)

// Runner drives one extraction run end to end: it allocates the output folder
// for an uploaded archive, tracks the run in the registry, executes the
// extraction workflow, and records the outcome. It is the seam between the
// HTTP layer, which knows about uploads, and the command chain, which knows
// about files.
type Runner struct {
	config   *config.Config
	workflow *MediaExtractionWorkflow
	registry *registry.Registry
}

// NewRunner constructs a runner around a shared workflow instance and the
// upload registry.
func NewRunner(cfg *config.Config, reg *registry.Registry) *Runner {
	return &Runner{
		config:   cfg,
		workflow: NewMediaExtractionWorkflow(cfg),
		registry: reg,
	}
}

// Run extracts the named uploaded archive into a fresh media folder.
//
// Logic Flow:
//  1. Allocate a UUID-named folder under the media directory.
//  2. Record a pending run in the registry and move it to processing.
//  3. Execute the extraction chain with a fresh chain context.
//  4. On success, mark the run completed with the produced file count; on
//     failure, mark it failed with the collected errors.
//
// The returned Run reflects the final registry state. The ExtractionResult is
// nil when the run failed outright (for example, a corrupt archive).
func (r *Runner) Run(ctx context.Context, archiveName string) (*registry.Run, *model.ExtractionResult, error) {
	archivePath := filepath.Join(r.config.Storage.UploadDir, archiveName)
	folderID := uuid.NewString()
	outputDir := filepath.Join(r.config.Storage.MediaDir, folderID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output folder: %w", err)
	}

	run, err := r.registry.CreateRun(ctx, archiveName, folderID)
	if err != nil {
		return nil, nil, err
	}
	if err := r.registry.MarkProcessing(ctx, run.ID); err != nil {
		return run, nil, err
	}

	slog.Info("starting extraction run",
		"run_id", run.ID, "archive", archiveName, "folder_id", folderID)

	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(cor.CtxIn, &model.ExtractionRequest{
		ArchivePath: archivePath,
		OutputDir:   outputDir,
	})
	defer chCtx.Close()

	r.workflow.Execute(chCtx)

	if chCtx.HasErrors() {
		runErr := joinChainErrors(chCtx.GetErrors())
		if failErr := r.registry.Fail(ctx, run.ID, runErr.Error()); failErr != nil {
			slog.Error("failed to record run failure", "run_id", run.ID, "error", failErr)
		}
		slog.Error("extraction run failed",
			"run_id", run.ID, "archive", archiveName, "error", runErr)
		run, _ = r.registry.GetByID(ctx, run.ID)
		return run, nil, runErr
	}

	result, _ := chCtx.Get(cor.CtxOut).(*model.ExtractionResult)
	if result == nil {
		result = &model.ExtractionResult{Files: make([]string, 0)}
	}
	if err := r.registry.Complete(ctx, run.ID, len(result.Files)); err != nil {
		return run, result, err
	}

	slog.Info("extraction run completed",
		"run_id", run.ID,
		"archive", archiveName,
		"images", result.ImageCount,
		"videos", result.VideoCount,
		"frames", result.FrameCount,
		"skipped", result.Skipped)

	run, err = r.registry.GetByID(ctx, run.ID)
	return run, result, err
}

// joinChainErrors flattens the chain context's error map into one error.
func joinChainErrors(errs map[string]error) error {
	joined := make([]error, 0, len(errs))
	for name, err := range errs {
		joined = append(joined, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(joined...)
}
