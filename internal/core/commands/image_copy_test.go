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

package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishloadmaster/coreset-selection/internal/core/commands"
	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

func TestImageCopyCopiesWithCollisionFreeNames(t *testing.T) {
	scratch := t.TempDir()
	outputDir := t.TempDir()

	// Two distinct files that share a base name, as happens when an archive
	// holds "photo.jpg" in two subfolders.
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "b"), 0o755))
	first := filepath.Join(scratch, "a", "photo.jpg")
	second := filepath.Join(scratch, "b", "photo.jpg")
	require.NoError(t, os.WriteFile(first, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("second"), 0o644))

	req := &model.ExtractionRequest{ArchivePath: "unused.zip", OutputDir: outputDir}
	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.MediaInventory{
		Request:    req,
		ScratchDir: scratch,
		Images:     []string{first, second},
	})

	commands.NewImageCopy("copy").Execute(ctx)

	require.False(t, ctx.HasErrors())
	result := commands.GetExtractionResult(ctx)
	assert.Equal(t, 2, result.ImageCount)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, []string{
		filepath.Join(outputDir, "photo.jpg"),
		filepath.Join(outputDir, "photo_1.jpg"),
	}, result.Files)

	content, err := os.ReadFile(filepath.Join(outputDir, "photo_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestImageCopySkipsUnreadableFiles(t *testing.T) {
	scratch := t.TempDir()
	outputDir := t.TempDir()

	good := filepath.Join(scratch, "good.png")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o644))
	missing := filepath.Join(scratch, "gone.png")

	req := &model.ExtractionRequest{ArchivePath: "unused.zip", OutputDir: outputDir}
	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.MediaInventory{
		Request:    req,
		ScratchDir: scratch,
		Images:     []string{missing, good},
	})

	commands.NewImageCopy("copy").Execute(ctx)

	// Per-file failures never fail the command; they are counted and skipped.
	require.False(t, ctx.HasErrors())
	result := commands.GetExtractionResult(ctx)
	assert.Equal(t, 1, result.ImageCount)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{filepath.Join(outputDir, "good.png")}, result.Files)

	// The inventory passes through for the frame sampler.
	assert.NotNil(t, ctx.Get(cor.CtxOut).(*model.MediaInventory))
}
