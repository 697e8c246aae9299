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

// Package testutil provides utility functions and fixtures to support the
// application's test suite: temp-directory configurations, on-the-fly zip
// archives, and tiny image payloads for exercising the extraction pipeline
// without real media assets.
package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/nishloadmaster/coreset-selection/internal/config"
)

// NewTestConfig returns a configuration rooted entirely inside a fresh temp
// directory, so tests never touch the real storage layout.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.NewConfig()
	cfg.Storage.UploadDir = filepath.Join(root, "uploads")
	cfg.Storage.MediaDir = filepath.Join(root, "media")
	cfg.Storage.ScratchDir = filepath.Join(root, "scratch")
	cfg.Storage.DatabasePath = filepath.Join(root, "uploads", "registry.db")
	cfg.Extraction.VideoWorkers = 2
	cfg.Extraction.FFmpegPerSecond = 10

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.MediaDir, cfg.Storage.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("failed to create test dir %s: %v", dir, err)
		}
	}
	return cfg
}

// TinyPNG returns a minimal valid PNG file: a 1x1 transparent pixel. Enough
// for extension and content-sniffing checks without binary fixtures on disk.
func TinyPNG() []byte {
	return []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, // PNG signature
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52, // IHDR
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
		0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, // IDAT
		0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
		0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, // IEND
		0x42, 0x60, 0x82,
	}
}

// WriteZip creates a zip archive at path containing the given entries, where
// keys are archive-internal names and values are file contents.
func WriteZip(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create archive %s: %v", path, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create archive entry %s: %v", name, err)
		}
		if _, err := entry.Write(content); err != nil {
			t.Fatalf("failed to write archive entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finalize archive: %v", err)
	}
}
