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

// Package workflow defines the high-level business logic orchestrations,
// combining various commands into coherent pipelines. This file implements
// the workflow that turns an uploaded zip archive into a flat folder of
// images: still images are copied as-is, videos are sampled into frames.
package workflow

import (
	"github.com/nishloadmaster/coreset-selection/internal/config"
	"github.com/nishloadmaster/coreset-selection/internal/core/commands"
	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
)

// MediaExtractionWorkflow orchestrates the archive extraction process. It's
// structured as a Chain of Responsibility (cor.Chain) that unpacks the
// archive, classifies its contents, copies images, samples video frames, and
// cleans up after itself. The workflow is stateless between runs: all per-run
// state (the scratch directory, the output namer, the accumulated result)
// lives in the chain context, so a single instance serves every upload.
type MediaExtractionWorkflow struct {
	cor.BaseCommand
	config *config.Config
	chain  cor.Chain // The underlying chain of commands to be executed.
}

// Execute runs the extraction workflow by invoking the underlying command
// chain. On return the context's CtxOut holds the run's ExtractionResult.
//
// Inputs:
//   - context: The chain of responsibility context for this execution, which
//     carries the initial ExtractionRequest and passes state between commands.
func (m *MediaExtractionWorkflow) Execute(context cor.Context) {
	m.chain.Execute(context)
}

// initializeChain constructs the sequence of commands that define the
// extraction pipeline. This method is called by the constructor.
func (m *MediaExtractionWorkflow) initializeChain() {
	// The chain continues past per-file failures: a video ffmpeg cannot
	// decode must not prevent the cleanup step from running, and the unpack
	// and scan commands guard themselves by not producing output on error.
	out := cor.NewBaseChain(m.GetName()).ContinueOnFailure(true)

	// Step 1: Unpack the uploaded zip archive into a scratch directory. A
	// failure here poisons the rest of the run, since the downstream commands
	// find no UnpackedArchive to consume.
	out.AddCommand(commands.NewArchiveUnpack("archive-unpack", m.config.Storage.ScratchDir))

	// Step 2: Walk the scratch tree and classify every file as image, video,
	// or ignored.
	out.AddCommand(commands.NewMediaScan("media-scan"))

	// Step 3: Copy the images into the output directory under collision-free
	// names.
	out.AddCommand(commands.NewImageCopy("image-copy"))

	// Step 4: Sample frames from the videos with ffmpeg and move them into
	// the output directory alongside the copied images.
	out.AddCommand(commands.NewFrameSampler("frame-sample", &m.config.Extraction))

	// Step 5: Remove the scratch directory and publish the accumulated
	// ExtractionResult as the chain's output.
	out.AddCommand(commands.NewScratchCleanup("scratch-cleanup"))

	// Assign the fully constructed chain to the workflow instance.
	m.chain = out
}

// NewMediaExtractionWorkflow is the constructor for the
// MediaExtractionWorkflow. It builds the command chain from the extraction
// configuration.
//
// Inputs:
//   - cfg: The application's overall configuration.
//
// Returns:
//   - A pointer to a newly created and fully initialized MediaExtractionWorkflow.
func NewMediaExtractionWorkflow(cfg *config.Config) *MediaExtractionWorkflow {
	out := &MediaExtractionWorkflow{
		BaseCommand: *cor.NewBaseCommand("media-extraction-workflow"),
		config:      cfg,
	}
	out.initializeChain()
	return out
}
