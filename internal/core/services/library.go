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

// Package services contains the business logic for interacting with the media
// library on disk. This file defines the LibraryService, which lists and
// deletes uploaded archives, extracted images, and extraction folders. It is
// the data access layer the HTTP handlers delegate to, keeping path handling
// and registry bookkeeping out of the API surface.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nishloadmaster/coreset-selection/internal/config"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
	"github.com/nishloadmaster/coreset-selection/internal/registry"
)

// ErrNotFound is returned when the named upload, image, or folder does not
// exist on disk.
var ErrNotFound = errors.New("not found")

// ErrInvalidName is returned when a client-supplied name resolves outside the
// directory it should live in.
var ErrInvalidName = errors.New("invalid name")

// LibraryService encapsulates the directory layout and registry access needed
// for the library's list and delete operations.
type LibraryService struct {
	Storage  config.Storage     // Directory layout of uploads and extracted media.
	Registry *registry.Registry // Upload registry, kept consistent on deletes.
}

// NewLibraryService constructs a library service over the configured storage
// layout.
func NewLibraryService(storage config.Storage, reg *registry.Registry) *LibraryService {
	return &LibraryService{Storage: storage, Registry: reg}
}

// containedPath resolves a client-supplied relative name below root and
// rejects names that escape it.
func containedPath(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidName
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", ErrInvalidName
	}
	return filepath.Join(root, cleaned), nil
}

// ListUploads returns the uploaded zip archives sorted by name. Archives the
// registry has seen carry the status and folder of their most recent
// extraction run.
func (s *LibraryService) ListUploads(ctx context.Context) ([]*model.UploadInfo, error) {
	entries, err := os.ReadDir(s.Storage.UploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return []*model.UploadInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	runs, err := s.Registry.List(ctx)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*registry.Run, len(runs))
	for _, run := range runs {
		if current, ok := latest[run.ArchiveName]; !ok || run.CreatedAt.After(current.CreatedAt) {
			latest[run.ArchiveName] = run
		}
	}

	uploads := make([]*model.UploadInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		upload := &model.UploadInfo{Name: entry.Name(), Size: info.Size()}
		if run, ok := latest[entry.Name()]; ok {
			upload.RunStatus = string(run.Status)
			upload.FolderID = run.FolderID
		}
		uploads = append(uploads, upload)
	}
	sort.Slice(uploads, func(i, j int) bool { return uploads[i].Name < uploads[j].Name })
	return uploads, nil
}

// DeleteUpload removes an uploaded archive and its registry records.
func (s *LibraryService) DeleteUpload(ctx context.Context, filename string) error {
	path, err := containedPath(s.Storage.UploadDir, filename)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	if _, err := s.Registry.DeleteByArchive(ctx, filename); err != nil {
		return err
	}
	return nil
}

// ListImages returns every extracted image across all extraction folders.
// Paths are relative to the media directory ("<folder-id>/<name>") and sorted,
// so the listing is stable and can be fed straight back into DeleteImage.
func (s *LibraryService) ListImages() ([]*model.FileInfo, error) {
	images := make([]*model.FileInfo, 0)

	err := filepath.WalkDir(s.Storage.MediaDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(s.Storage.MediaDir, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		images = append(images, &model.FileInfo{
			Name: d.Name(),
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media dir: %w", err)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

// DeleteImage removes a single extracted image named by its media-relative
// path.
func (s *LibraryService) DeleteImage(name string) error {
	path, err := containedPath(s.Storage.MediaDir, filepath.FromSlash(name))
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// ListFolders returns every extraction folder and its contents. Folders are
// sorted by ID and files within a folder by path.
func (s *LibraryService) ListFolders(ctx context.Context) ([]*model.FolderInfo, error) {
	entries, err := os.ReadDir(s.Storage.MediaDir)
	if errors.Is(err, os.ErrNotExist) {
		return []*model.FolderInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	folders := make([]*model.FolderInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder, err := s.GetFolder(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].FolderID < folders[j].FolderID })
	return folders, nil
}

// GetFolder returns one extraction folder and its file listing, annotated
// with the archive and status of the run that produced it.
func (s *LibraryService) GetFolder(ctx context.Context, folderID string) (*model.FolderInfo, error) {
	dir, err := containedPath(s.Storage.MediaDir, folderID)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		return nil, ErrNotFound
	}

	folder := &model.FolderInfo{
		FolderID:   folderID,
		FolderPath: dir,
		Files:      make([]*model.FileInfo, 0),
	}
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		folder.Files = append(folder.Files, &model.FileInfo{
			Name: d.Name(),
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk folder %s: %w", folderID, err)
	}
	sort.Slice(folder.Files, func(i, j int) bool { return folder.Files[i].Path < folder.Files[j].Path })

	run, err := s.Registry.GetByFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if run != nil {
		folder.ArchiveName = run.ArchiveName
		folder.RunStatus = string(run.Status)
	}
	return folder, nil
}

// DeleteFolder removes an extraction folder, its contents, and its registry
// records.
func (s *LibraryService) DeleteFolder(ctx context.Context, folderID string) error {
	dir, err := containedPath(s.Storage.MediaDir, folderID)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove folder: %w", err)
	}
	if _, err := s.Registry.DeleteByFolder(ctx, folderID); err != nil {
		return err
	}
	return nil
}
