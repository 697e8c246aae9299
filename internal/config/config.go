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

// Package config defines the data structures for application configuration,
// loaded from TOML files. It provides a structured way to manage settings for
// the HTTP server, the media storage directories, and the extraction pipeline.
//
// Structs:
//   - Storage: Directory layout for uploaded archives, extracted media,
//     scratch space, and the registry database.
//   - Extraction: Tunables for the media extraction pipeline (frame sampling
//     interval, frame cap, ffmpeg/ffprobe locations, worker pool size).
//   - Config: The top-level struct that aggregates all other sections.
//
// Functions:
//   - NewConfig: A constructor that returns a Config populated with defaults
//     suitable for local development.
package config

// Storage represents the on-disk layout of the backend. All paths may be
// relative to the working directory or absolute.
type Storage struct {
	UploadDir    string `toml:"upload_dir"`    // Where uploaded zip archives are kept.
	MediaDir     string `toml:"media_dir"`     // Root of the per-upload extracted media folders.
	ScratchDir   string `toml:"scratch_dir"`   // Parent for transient archive-unpack directories.
	DatabasePath string `toml:"database_path"` // Path of the SQLite upload registry database.
}

// Extraction holds the tunables for the media extraction pipeline.
type Extraction struct {
	FrameIntervalSeconds int    `toml:"frame_interval_seconds"` // Seconds between sampled video frames.
	MaxFramesPerVideo    int    `toml:"max_frames_per_video"`   // Hard cap on frames emitted per video.
	FFmpegPath           string `toml:"ffmpeg_path"`            // Path to the ffmpeg executable.
	FFprobePath          string `toml:"ffprobe_path"`           // Path to the ffprobe executable.
	VideoWorkers         int    `toml:"video_workers"`          // Size of the worker pool for video processing.
	FFmpegPerSecond      int    `toml:"ffmpeg_per_second"`      // Rate limit for ffmpeg invocations per second.
}

// Config represents the overall configuration for the application, loaded from
// TOML files. It acts as the root container for all other configuration
// structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name string `toml:"name"` // The name of the application, used in telemetry.
		Port int    `toml:"port"` // TCP port the HTTP server listens on.
	} `toml:"application"`
	Storage    Storage    `toml:"storage"`    // Directory layout configuration.
	Extraction Extraction `toml:"extraction"` // Extraction pipeline configuration.
}

// NewConfig is a constructor function that creates a new Config instance with
// defaults that work for a local checkout. Values are overridden by the TOML
// files that LoadConfig reads.
//
// Outputs:
//   - *Config: A pointer to a new Config struct populated with defaults.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.Application.Name = "coreset-selection"
	cfg.Application.Port = 8050
	cfg.Storage = Storage{
		UploadDir:    "uploads",
		MediaDir:     "static/images",
		ScratchDir:   "",
		DatabasePath: "uploads/registry.db",
	}
	cfg.Extraction = Extraction{
		FrameIntervalSeconds: 1,
		MaxFramesPerVideo:    100,
		FFmpegPath:           "ffmpeg",
		FFprobePath:          "ffprobe",
		VideoWorkers:         4,
		FFmpegPerSecond:      2,
	}
	return cfg
}
