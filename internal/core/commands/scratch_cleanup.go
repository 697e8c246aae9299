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

package commands

import (
	"log/slog"
	"os"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// ScratchCleanup is the terminal command of the extraction chain. It removes
// the scratch directory the archive was unpacked into and promotes the
// accumulated ExtractionResult to the chain's output, which is what callers
// of the workflow read back.
//
// The command runs even after upstream failures (the chain continues on
// failure) so a bad media file never strands scratch space on disk.
type ScratchCleanup struct {
	cor.BaseCommand
}

// NewScratchCleanup constructs the cleanup command.
func NewScratchCleanup(name string) *ScratchCleanup {
	return &ScratchCleanup{BaseCommand: *cor.NewBaseCommand(name)}
}

// IsExecutable always reports true; cleanup must run regardless of what the
// context holds.
func (c *ScratchCleanup) IsExecutable(context cor.Context) bool {
	return context.GetContext() != nil
}

// Execute removes the scratch directory and emits the run's result.
func (c *ScratchCleanup) Execute(context cor.Context) {
	if inventory, ok := context.Get(c.GetInputParam()).(*model.MediaInventory); ok {
		if err := os.RemoveAll(inventory.ScratchDir); err != nil {
			// The context's temp-file tracking retries removal on Close.
			slog.Warn("failed to remove scratch directory",
				"dir", inventory.ScratchDir, "error", err)
		}
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, GetExtractionResult(context))
}
