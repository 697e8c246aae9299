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
	"github.com/nishloadmaster/coreset-selection/internal/testutil"
)

func TestArchiveUnpackExtractsTree(t *testing.T) {
	workDir := t.TempDir()
	archivePath := filepath.Join(workDir, "media.zip")
	testutil.WriteZip(t, archivePath, map[string][]byte{
		"a.jpg":       []byte("image-a"),
		"sub/b.png":   []byte("image-b"),
		"sub/c/d.mp4": []byte("video-d"),
	})

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.ExtractionRequest{ArchivePath: archivePath, OutputDir: workDir})

	commands.NewArchiveUnpack("unpack", workDir).Execute(ctx)

	require.False(t, ctx.HasErrors())
	unpacked := ctx.Get(cor.CtxOut).(*model.UnpackedArchive)

	for _, name := range []string{"a.jpg", "sub/b.png", "sub/c/d.mp4"} {
		_, err := os.Stat(filepath.Join(unpacked.ScratchDir, name))
		assert.NoError(t, err, "expected %s to be unpacked", name)
	}

	// The scratch dir is registered for cleanup on context close.
	assert.Contains(t, ctx.GetTempFiles(), unpacked.ScratchDir)
	ctx.Close()
	_, err := os.Stat(unpacked.ScratchDir)
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveUnpackContainsEscapingEntries(t *testing.T) {
	workDir := t.TempDir()
	archivePath := filepath.Join(workDir, "slip.zip")
	testutil.WriteZip(t, archivePath, map[string][]byte{
		"../evil.txt": []byte("outside"),
	})

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.ExtractionRequest{ArchivePath: archivePath, OutputDir: workDir})

	commands.NewArchiveUnpack("unpack", workDir).Execute(ctx)
	defer ctx.Close()

	require.False(t, ctx.HasErrors())
	unpacked := ctx.Get(cor.CtxOut).(*model.UnpackedArchive)

	// The ".." component is stripped, so the entry lands inside the scratch
	// dir instead of escaping it.
	_, err := os.Stat(filepath.Join(unpacked.ScratchDir, "evil.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(workDir, "..", "evil.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestArchiveUnpackFailsOnCorruptArchive(t *testing.T) {
	workDir := t.TempDir()
	archivePath := filepath.Join(workDir, "broken.zip")
	require.NoError(t, os.WriteFile(archivePath, []byte("this is not a zip"), 0o644))

	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.ExtractionRequest{ArchivePath: archivePath, OutputDir: workDir})

	commands.NewArchiveUnpack("unpack", workDir).Execute(ctx)
	defer ctx.Close()

	assert.True(t, ctx.HasErrors())
	assert.Nil(t, ctx.Get(cor.CtxOut))
}
