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

// Package model defines the core data structures for the application. This
// file contains the transient structs used in memory while an extraction
// workflow runs. They are intermediate containers for data as it is passed
// between the commands of a chain and are not persisted in this form; the
// registry keeps its own records.
package model

// MediaKind classifies a file found inside an uploaded archive.
type MediaKind string

// The kinds recognized by the media scanner. Anything that is neither an
// image nor a video is ignored.
const (
	KindImage   MediaKind = "image"
	KindVideo   MediaKind = "video"
	KindIgnored MediaKind = "ignored"
)

// ExtractionRequest is the initial input to the extraction chain: the archive
// to unpack and the directory the normalized media should land in.
type ExtractionRequest struct {
	ArchivePath string // Absolute path of the uploaded zip archive.
	OutputDir   string // Directory that receives copied images and sampled frames.
}

// UnpackedArchive is produced by the unpack command and consumed by the
// scanner. ScratchDir is transient and removed at the end of the run.
type UnpackedArchive struct {
	Request    *ExtractionRequest
	ScratchDir string // Directory the archive contents were unpacked into.
}

// MediaInventory is the scanner's classification of the unpacked tree. The
// slices preserve filesystem walk order, which is the order the downstream
// commands process the entries in.
type MediaInventory struct {
	Request    *ExtractionRequest
	ScratchDir string
	Images     []string // Paths of image files inside the scratch tree.
	Videos     []string // Paths of video files inside the scratch tree.
	Ignored    int      // Count of entries that were neither image nor video.
}

// ExtractionResult aggregates everything an extraction run wrote. Files holds
// the absolute output paths in the order they were written; per-file failures
// increment Skipped without aborting the run.
type ExtractionResult struct {
	Files      []string `json:"files"`
	ImageCount int      `json:"image_count"`
	VideoCount int      `json:"video_count"`
	FrameCount int      `json:"frame_count"`
	Skipped    int      `json:"skipped"`
}

// FileInfo describes one file inside an extraction folder, as reported by the
// folder listing endpoint.
type FileInfo struct {
	Name string `json:"name"`
	Path string `json:"path"` // Relative to the extraction folder.
	Size int64  `json:"size"`
}

// UploadInfo describes one uploaded archive and, when the registry has seen
// it, the outcome of its most recent extraction run.
type UploadInfo struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	RunStatus string `json:"run_status,omitempty"` // Latest run's status; empty when never extracted.
	FolderID  string `json:"folder_id,omitempty"`  // Folder the latest run extracted into.
}

// FolderInfo describes one extraction folder and its contents, annotated with
// the registry record of the run that produced it when one exists.
type FolderInfo struct {
	FolderID    string      `json:"folder_id"`
	FolderPath  string      `json:"folder_path"`
	ArchiveName string      `json:"archive_name,omitempty"` // Archive the folder was extracted from.
	RunStatus   string      `json:"run_status,omitempty"`   // Status of the run that produced the folder.
	Files       []*FileInfo `json:"files"`
}

// ImproveRequest carries the parameters of the model-improvement stub. The
// endpoint validates and echoes them; no training is triggered.
type ImproveRequest struct {
	DatasetPath    string  `json:"dataset_path" binding:"required"`
	ModelName      string  `json:"model_name" binding:"required"`
	SamplingFactor float64 `json:"sampling_factor"`
}
