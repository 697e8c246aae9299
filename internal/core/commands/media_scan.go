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
// scanner that classifies the unpacked archive tree into images, videos, and
// ignored entries.
//
// Classification is primarily by file extension, matching the set of formats
// the rest of the pipeline understands. A file without an extension gets a
// second chance through content sniffing with the filetype library; a file
// with an unknown extension is ignored, since an extension the pipeline
// cannot name is an extension ffmpeg is unlikely to handle either.
package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// imageExtensions and videoExtensions are the lookup tables the scanner
// classifies by. The sets mirror what the image copier and the ffmpeg frame
// sampler can actually process.
var (
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".tiff": {}, ".gif": {},
	}
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".wmv": {}, ".flv": {},
	}
)

// sniffHeaderSize is how many leading bytes the content sniffer reads for an
// extensionless file. 261 bytes covers every matcher filetype registers.
const sniffHeaderSize = 261

// Classify reports the media kind of a file path based on its extension,
// falling back to content sniffing when the path has no extension.
func Classify(path string) model.MediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return model.KindImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return model.KindVideo
	}
	if ext == "" {
		return sniffKind(path)
	}
	return model.KindIgnored
}

// sniffKind reads the file header and asks the filetype matchers whether the
// content looks like an image or a video.
func sniffKind(path string) model.MediaKind {
	f, err := os.Open(path)
	if err != nil {
		return model.KindIgnored
	}
	defer f.Close()

	header := make([]byte, sniffHeaderSize)
	n, err := f.Read(header)
	if err != nil && n == 0 {
		return model.KindIgnored
	}
	kind, err := filetype.Match(header[:n])
	if err != nil {
		return model.KindIgnored
	}
	switch kind.MIME.Type {
	case "image":
		return model.KindImage
	case "video":
		return model.KindVideo
	}
	return model.KindIgnored
}

// MediaScan walks the unpacked scratch tree and produces a MediaInventory.
type MediaScan struct {
	cor.BaseCommand
}

// NewMediaScan constructs the scanner command.
func NewMediaScan(name string) *MediaScan {
	return &MediaScan{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute classifies every regular file below the scratch directory. The
// inventory preserves walk order; ordering across runs is therefore only as
// deterministic as the filesystem's directory listing.
func (c *MediaScan) Execute(context cor.Context) {
	unpacked := context.Get(c.GetInputParam()).(*model.UnpackedArchive)

	inventory := &model.MediaInventory{
		Request:    unpacked.Request,
		ScratchDir: unpacked.ScratchDir,
		Images:     make([]string, 0),
		Videos:     make([]string, 0),
	}

	err := filepath.WalkDir(unpacked.ScratchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		switch Classify(path) {
		case model.KindImage:
			inventory.Images = append(inventory.Images, path)
		case model.KindVideo:
			inventory.Videos = append(inventory.Videos, path)
		default:
			inventory.Ignored++
		}
		return nil
	})
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(c.GetName(), fmt.Errorf("scan scratch tree: %w", err))
		return
	}

	c.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(cor.CtxOut, inventory)
}
