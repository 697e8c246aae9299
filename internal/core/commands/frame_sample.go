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

package commands

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nishloadmaster/coreset-selection/internal/config"
	"github.com/nishloadmaster/coreset-selection/internal/core/cor"
	"github.com/nishloadmaster/coreset-selection/internal/core/model"
)

// fallbackFrameStride is used when ffprobe cannot report a usable frame rate.
// Sampling every 30th frame approximates one frame per second for common
// footage.
const fallbackFrameStride = 30

// FrameSampler extracts still frames from every video in the inventory.
//
// Logic Flow:
//  1. Receive the MediaInventory from the image copier.
//  2. Fan the videos out to a fixed pool of workers. Each worker probes the
//     video's frame rate, derives the sampling stride from the configured
//     interval, and runs ffmpeg to dump at most MaxFramesPerVideo frames into
//     a per-video staging directory inside the scratch tree.
//  3. Move the staged frames into the output directory under collision-free
//     names and record them on the shared ExtractionResult.
//
// ffmpeg invocations across all workers share a rate limiter so a large
// archive cannot saturate the host. A video that fails to probe or decode is
// logged and counted as skipped; the run continues. Frames are recorded in
// inventory order regardless of which worker finishes first, so the output
// listing is stable for a given archive.
type FrameSampler struct {
	cor.BaseCommand
	cfg     *config.Extraction
	limiter *rate.Limiter
}

// sampleOutcome is one worker's result for a single video.
type sampleOutcome struct {
	index  int      // Position of the video in the inventory.
	frames []string // Staged frame paths, in frame order.
	err    error
}

// NewFrameSampler constructs the sampling command. A non-positive configured
// rate is floored to one ffmpeg spawn per second; a zero-rate limiter would
// block every worker until context cancellation.
func NewFrameSampler(name string, cfg *config.Extraction) *FrameSampler {
	perSecond := cfg.FFmpegPerSecond
	if perSecond < 1 {
		perSecond = 1
	}
	return &FrameSampler{
		BaseCommand: *cor.NewBaseCommand(name),
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Execute samples frames from every video in the inventory.
func (c *FrameSampler) Execute(chCtx cor.Context) {
	inventory := chCtx.Get(c.GetInputParam()).(*model.MediaInventory)
	result := GetExtractionResult(chCtx)
	namer := GetNamer(chCtx, inventory.Request.OutputDir)
	ctx := chCtx.GetContext()

	outcomes := c.sampleAll(ctx, inventory)

	for _, outcome := range outcomes {
		if outcome.err != nil {
			slog.Warn("skipping video that failed frame extraction",
				"video", filepath.Base(inventory.Videos[outcome.index]), "error", outcome.err)
			result.Skipped++
			continue
		}
		for _, staged := range outcome.frames {
			target := namer.Reserve(filepath.Base(staged))
			if err := moveFile(staged, target); err != nil {
				slog.Warn("skipping frame that failed to move",
					"frame", filepath.Base(staged), "error", err)
				result.Skipped++
				continue
			}
			result.Files = append(result.Files, target)
			result.FrameCount++
		}
		result.VideoCount++
	}

	c.GetSuccessCounter().Add(ctx, 1)
	chCtx.Add(cor.CtxOut, inventory)
}

// sampleAll runs the worker pool over the inventory's videos and returns the
// outcomes sorted back into inventory order.
func (c *FrameSampler) sampleAll(ctx context.Context, inventory *model.MediaInventory) []sampleOutcome {
	workers := c.cfg.VideoWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, len(inventory.Videos))
	results := make(chan sampleOutcome, len(inventory.Videos))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				frames, err := c.sampleVideo(ctx, inventory.Videos[index], inventory.ScratchDir)
				results <- sampleOutcome{index: index, frames: frames, err: err}
			}
		}()
	}

	for index := range inventory.Videos {
		jobs <- index
	}
	close(jobs)
	wg.Wait()
	close(results)

	outcomes := make([]sampleOutcome, 0, len(inventory.Videos))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].index < outcomes[j].index })
	return outcomes
}

// sampleVideo extracts frames from one video into a staging directory and
// returns the staged frame paths in frame order.
func (c *FrameSampler) sampleVideo(ctx context.Context, videoPath, scratchDir string) ([]string, error) {
	stride := c.frameStride(ctx, videoPath)

	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	stageDir, err := os.MkdirTemp(scratchDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pattern := filepath.Join(stageDir, stem+"_frame_%04d.jpg")
	cmd := exec.CommandContext(ctx, c.cfg.FFmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf(`select='not(mod(n\,%d))'`, stride),
		"-vsync", "vfr",
		"-frames:v", strconv.Itoa(c.cfg.MaxFramesPerVideo),
		"-q:v", "2",
		pattern,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	frames, err := filepath.Glob(filepath.Join(stageDir, stem+"_frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

// osRename is swapped in tests to exercise the cross-filesystem fallback.
var osRename = os.Rename

// moveFile moves a staged frame into the output directory. The scratch tree
// defaults to the system temp directory, which on many hosts is a different
// filesystem than the media directory, so a failed rename falls back to
// copy-and-remove instead of dropping the frame.
func moveFile(src, dst string) error {
	if err := osRename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// frameStride derives the sampling stride from the video's frame rate and the
// configured interval. Probe failures fall back to a stride that approximates
// one frame per second.
func (c *FrameSampler) frameStride(ctx context.Context, videoPath string) int {
	fps, err := c.probeFrameRate(ctx, videoPath)
	if err != nil {
		slog.Debug("falling back to default frame stride",
			"video", filepath.Base(videoPath), "error", err)
		return fallbackFrameStride
	}
	stride := int(math.Round(fps * float64(c.cfg.FrameIntervalSeconds)))
	if stride < 1 {
		stride = 1
	}
	return stride
}

// probeFrameRate asks ffprobe for the video stream's real frame rate, which
// it reports as a rational such as "30000/1001".
func (c *FrameSampler) probeFrameRate(ctx context.Context, videoPath string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, c.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return parseFrameRate(strings.TrimSpace(string(out)))
}

// parseFrameRate converts ffprobe's rational frame rate into a float.
func parseFrameRate(raw string) (float64, error) {
	num, den, found := strings.Cut(raw, "/")
	if !found {
		return strconv.ParseFloat(raw, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", raw, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: invalid denominator", raw)
	}
	return n / d, nil
}
