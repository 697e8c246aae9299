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
// Responsibility (COR) pattern's Command interface for the media extraction
// pipeline. This file holds the collision-free output namer shared by the
// image copy and frame sampling commands, plus the context key under which
// the commands accumulate the run's ExtractionResult.
package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// ExtractionResultParam is the context key the pipeline commands use to share
// the accumulated ExtractionResult for the current run.
const ExtractionResultParam = "extraction.result"

// NamerParam is the context key the pipeline commands use to share the run's
// UniqueNamer. Sharing one namer keeps image names and frame names in a
// single collision-free namespace.
const NamerParam = "extraction.namer"

// GetExtractionResult returns the shared ExtractionResult from the context,
// creating and registering an empty one on first use.
func GetExtractionResult(ctx cor.Context) *model.ExtractionResult {
	if v := ctx.Get(ExtractionResultParam); v != nil {
		return v.(*model.ExtractionResult)
	}
	result := &model.ExtractionResult{Files: make([]string, 0)}
	ctx.Add(ExtractionResultParam, result)
	return result
}

// GetNamer returns the run's shared UniqueNamer from the context, creating
// and registering one rooted at dir on first use.
func GetNamer(ctx cor.Context, dir string) *UniqueNamer {
	if v := ctx.Get(NamerParam); v != nil {
		return v.(*UniqueNamer)
	}
	namer := NewUniqueNamer(dir)
	ctx.Add(NamerParam, namer)
	return namer
}

// UniqueNamer hands out collision-free file names within a single output
// directory for the duration of one extraction run. A requested name is kept
// as-is when free; otherwise a numeric suffix is appended before the
// extension ("photo.jpg", "photo_1.jpg", "photo_2.jpg", ...). Names are
// checked against both the filesystem and the names already reserved in this
// run, and once assigned a name is never handed out again. Safe for
// concurrent use.
type UniqueNamer struct {
	dir  string
	mu   sync.Mutex
	used map[string]struct{}
}

// NewUniqueNamer creates a namer rooted at the given output directory.
func NewUniqueNamer(dir string) *UniqueNamer {
	return &UniqueNamer{dir: dir, used: make(map[string]struct{})}
}

// Reserve claims a collision-free variant of the requested base name and
// returns its absolute path inside the output directory.
func (n *UniqueNamer) Reserve(base string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for counter := 1; n.taken(candidate); counter++ {
		candidate = stem + "_" + strconv.Itoa(counter) + ext
	}
	n.used[candidate] = struct{}{}
	return filepath.Join(n.dir, candidate)
}

// taken reports whether a name is already reserved in this run or present on
// disk. Callers must hold the mutex.
func (n *UniqueNamer) taken(name string) bool {
	if _, ok := n.used[name]; ok {
		return true
	}
	_, err := os.Stat(filepath.Join(n.dir, name))
	return err == nil
}
