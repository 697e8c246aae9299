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

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nishloadmaster/coreset-selection/internal/core/model"
	"github.com/nishloadmaster/coreset-selection/internal/core/services"
	"github.com/nishloadmaster/coreset-selection/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	shutdownTelemetry, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Error("failed to shut down telemetry", "error", err)
		}
	}()
	slog.Info("Tracing initialized")

	InitState()
	defer CloseState()
	slog.Info("Initialized State")

	r := gin.Default()

	// Add OpenTelemetry middleware
	r.Use(otelgin.Middleware(config.Application.Name))

	// A permissive CORS configuration keeps local frontends working without
	// extra setup.
	r.Use(cors.Default())

	// Serve the extracted media straight from disk.
	r.Static("/static/images", config.Storage.MediaDir)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Create the "/api/v1" group
	apiV1 := r.Group("/api/v1")
	{
		UploadRouter(apiV1)
		LibraryRouter(apiV1)
		ModelRouter(apiV1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Application.Port),
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready", "port", config.Application.Port)

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}

	log.Println("Server exiting")
}

// statusForError maps the library service's sentinel errors onto HTTP status
// codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// uniqueUploadName resolves a collision-free file name inside the upload
// directory, appending a numeric suffix before the extension when needed.
func uniqueUploadName(dir, filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	candidate := filename
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err != nil {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
}

// UploadRouter sets up the routes for uploading, listing, and deleting zip
// archives. An accepted upload is extracted immediately; pass "sync=false" to
// run the extraction in the background instead and poll the registry.
func UploadRouter(r *gin.RouterGroup) {
	upload := r.Group("/uploads")
	{
		upload.POST("", func(c *gin.Context) {
			file, err := c.FormFile("file")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("get form err: %s", err.Error())})
				return
			}

			filename := filepath.Base(file.Filename)
			if !strings.EqualFold(filepath.Ext(filename), ".zip") {
				c.JSON(http.StatusBadRequest, gin.H{"error": "only zip archives are accepted"})
				return
			}

			filename = uniqueUploadName(state.config.Storage.UploadDir, filename)
			localPath := filepath.Join(state.config.Storage.UploadDir, filename)
			if err := c.SaveUploadedFile(file, localPath); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("save file err: %s", err.Error())})
				return
			}

			if c.DefaultQuery("sync", "true") == "false" {
				// The request context dies with the response; background runs
				// get their own.
				go func() {
					if _, _, err := state.runner.Run(context.Background(), filename); err != nil {
						slog.Error("background extraction failed", "archive", filename, "error", err)
					}
				}()
				c.JSON(http.StatusAccepted, gin.H{"filename": filename, "status": "processing"})
				return
			}

			run, result, err := state.runner.Run(c.Request.Context(), filename)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{
					"filename": filename,
					"run":      run,
					"error":    "extraction failed",
				})
				return
			}
			c.JSON(http.StatusOK, gin.H{"filename": filename, "run": run, "result": result})
		})

		upload.GET("", func(c *gin.Context) {
			uploads, err := state.library.ListUploads(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"uploads": uploads})
		})

		upload.GET("/runs", func(c *gin.Context) {
			runs, err := state.registry.List(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"runs": runs})
		})

		upload.DELETE("/:filename", func(c *gin.Context) {
			filename := c.Param("filename")
			if err := state.library.DeleteUpload(c.Request.Context(), filename); err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted": filename})
		})
	}
}

// LibraryRouter sets up the routes for browsing and deleting extracted images
// and extraction folders.
func LibraryRouter(r *gin.RouterGroup) {
	images := r.Group("/images")
	{
		images.GET("", func(c *gin.Context) {
			listing, err := state.library.ListImages()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"images": listing})
		})

		images.DELETE("", func(c *gin.Context) {
			name := c.Query("name")
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
				return
			}
			if err := state.library.DeleteImage(name); err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted": name})
		})
	}

	folders := r.Group("/folders")
	{
		folders.GET("", func(c *gin.Context) {
			listing, err := state.library.ListFolders(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"folders": listing})
		})

		folders.GET("/:id", func(c *gin.Context) {
			folder, err := state.library.GetFolder(c.Request.Context(), c.Param("id"))
			if err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, folder)
		})

		folders.DELETE("/:id", func(c *gin.Context) {
			id := c.Param("id")
			if err := state.library.DeleteFolder(c.Request.Context(), id); err != nil {
				c.JSON(statusForError(err), gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted": id})
		})
	}
}

// ModelRouter sets up the model-improvement stub. The endpoint validates the
// request and echoes it back; no training is triggered yet.
func ModelRouter(r *gin.RouterGroup) {
	models := r.Group("/models")
	{
		models.POST("/improve", func(c *gin.Context) {
			var req model.ImproveRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if req.SamplingFactor <= 0 || req.SamplingFactor > 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "sampling_factor must be in (0, 1]"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"status":          "received",
				"dataset_path":    req.DatasetPath,
				"model_name":      req.ModelName,
				"sampling_factor": req.SamplingFactor,
			})
		})
	}
}
