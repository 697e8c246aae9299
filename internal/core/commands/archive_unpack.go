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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// first command of the extraction pipeline: unpacking the uploaded zip
// archive into a scratch directory.
//
// Logic Flow:
//  1. The command receives an ExtractionRequest from the context.
//  2. It creates a unique scratch directory and registers it as a temp path
//     so the context removes it even when the chain aborts early.
//  3. It unpacks every regular entry of the archive into the scratch
//     directory, preserving the archive's internal layout. Entry names are
//     cleaned relative to the scratch root, so absolute or parent-relative
//     names (zip-slip) land inside it instead of escaping.
//  4. On success it places an UnpackedArchive in the context for the scanner.
//
// Unlike the per-file commands downstream, a failure here aborts the whole
// run: without an unpacked tree there is nothing left to process.
package commands

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// ScratchDirPrefix is the name prefix of the transient unpack directories.
const ScratchDirPrefix = "coreset-unpack-"

// ArchiveUnpack is the command that unpacks an uploaded zip archive into a
// scratch directory.
type ArchiveUnpack struct {
	cor.BaseCommand
	scratchRoot string // Parent directory for scratch dirs; os.TempDir when empty.
}

// NewArchiveUnpack constructs the unpack command. scratchRoot may be empty,
// in which case the system temp directory is used.
func NewArchiveUnpack(name string, scratchRoot string) *ArchiveUnpack {
	return &ArchiveUnpack{BaseCommand: *cor.NewBaseCommand(name), scratchRoot: scratchRoot}
}

// Execute unpacks the archive named by the ExtractionRequest in the context.
func (c *ArchiveUnpack) Execute(context cor.Context) {
	req := context.Get(c.GetInputParam()).(*model.ExtractionRequest)

	root := c.scratchRoot
	if root == "" {
		root = os.TempDir()
	}
	scratchDir := filepath.Join(root, ScratchDirPrefix+uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("create scratch dir: %w", err))
		return
	}
	// Track the scratch dir immediately so the context removes it even when
	// unpacking fails halfway through.
	context.AddTempFile(scratchDir)

	if err := unpackZip(req.ArchivePath, scratchDir); err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("unpack archive %s: %w", filepath.Base(req.ArchivePath), err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, &model.UnpackedArchive{Request: req, ScratchDir: scratchDir})
}

// unpackZip extracts every entry of the archive into destDir, preserving the
// archive's directory layout.
func unpackZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, entry := range reader.File {
		target := scratchTarget(destDir, entry.Name)
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}
	return nil
}

// scratchTarget resolves an archive entry name below destDir. Cleaning the
// name as if rooted at "/" strips leading slashes and ".." components, so a
// zip-slip entry is neutralized to a path inside destDir rather than an
// escape.
func scratchTarget(destDir, name string) string {
	return filepath.Join(destDir, filepath.Clean("/"+name))
}

// extractEntry writes a single regular archive entry to its target path.
func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
