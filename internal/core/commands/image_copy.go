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
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// ImageCopy copies every image from the scratch tree into the run's output
// directory under a collision-free name.
//
// Logic Flow:
//  1. Receive the MediaInventory from the scanner.
//  2. Copy each image into the output directory, asking the shared namer for
//     a free name so "photo.jpg" from two archive subfolders never clobbers.
//  3. Record each written path on the shared ExtractionResult.
//
// A file that fails to copy is logged and counted as skipped; the run
// continues with the remaining files. The inventory is passed through
// unchanged so the frame sampler can consume it next.
type ImageCopy struct {
	cor.BaseCommand
}

// NewImageCopy constructs the image copy command.
func NewImageCopy(name string) *ImageCopy {
	return &ImageCopy{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute copies the inventory's images into the output directory.
func (c *ImageCopy) Execute(context cor.Context) {
	inventory := context.Get(c.GetInputParam()).(*model.MediaInventory)
	result := GetExtractionResult(context)
	namer := GetNamer(context, inventory.Request.OutputDir)

	for _, src := range inventory.Images {
		target := namer.Reserve(filepath.Base(src))
		if err := copyFile(src, target); err != nil {
			slog.Warn("skipping image that failed to copy",
				"image", filepath.Base(src), "error", err)
			result.Skipped++
			continue
		}
		result.Files = append(result.Files, target)
		result.ImageCount++
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, inventory)
}

// copyFile copies src to dst, creating or truncating dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
