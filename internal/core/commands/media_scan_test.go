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
	"context"
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

func newChainContext() cor.Context {
	ctx := cor.NewBaseContext()
	ctx.SetContext(context.Background())
	return ctx
}

func TestClassifyByExtension(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		want model.MediaKind
	}{
		{"photo.jpg", model.KindImage},
		{"photo.JPEG", model.KindImage},
		{"scan.png", model.KindImage},
		{"scan.bmp", model.KindImage},
		{"scan.tiff", model.KindImage},
		{"anim.gif", model.KindImage},
		{"clip.mp4", model.KindVideo},
		{"clip.AVI", model.KindVideo},
		{"clip.mov", model.KindVideo},
		{"clip.mkv", model.KindVideo},
		{"clip.wmv", model.KindVideo},
		{"clip.flv", model.KindVideo},
		{"notes.txt", model.KindIgnored},
		{"archive.tar.gz", model.KindIgnored},
	}
	for _, tc := range cases {
		got := commands.Classify(filepath.Join(dir, tc.name))
		assert.Equal(t, tc.want, got, "classification of %s", tc.name)
	}
}

func TestClassifySniffsExtensionlessFiles(t *testing.T) {
	dir := t.TempDir()

	// A real PNG payload without an extension should sniff as an image.
	pngPath := filepath.Join(dir, "mystery")
	require.NoError(t, os.WriteFile(pngPath, testutil.TinyPNG(), 0o644))
	assert.Equal(t, model.KindImage, commands.Classify(pngPath))

	// Arbitrary bytes without an extension stay ignored.
	junkPath := filepath.Join(dir, "noise")
	require.NoError(t, os.WriteFile(junkPath, []byte("plain text, nothing to see"), 0o644))
	assert.Equal(t, model.KindIgnored, commands.Classify(junkPath))
}

func TestMediaScanBuildsInventory(t *testing.T) {
	scratch := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "sub"), 0o755))
	files := map[string]string{
		"a.jpg":      "img",
		"sub/b.png":  "img",
		"clip.mp4":   "vid",
		"readme.txt": "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(scratch, name), []byte(content), 0o644))
	}

	req := &model.ExtractionRequest{ArchivePath: "unused.zip", OutputDir: t.TempDir()}
	ctx := newChainContext()
	ctx.Add(cor.CtxIn, &model.UnpackedArchive{Request: req, ScratchDir: scratch})

	commands.NewMediaScan("scan").Execute(ctx)

	require.False(t, ctx.HasErrors())
	inventory := ctx.Get(cor.CtxOut).(*model.MediaInventory)
	assert.Len(t, inventory.Images, 2)
	assert.Len(t, inventory.Videos, 1)
	assert.Equal(t, 1, inventory.Ignored)
	assert.Equal(t, scratch, inventory.ScratchDir)
}
