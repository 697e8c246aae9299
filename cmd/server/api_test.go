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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nishloadmaster/coreset-selection/internal/core/services"
	"github.com/nishloadmaster/coreset-selection/internal/core/workflow"
	"github.com/nishloadmaster/coreset-selection/internal/registry"
	"github.com/nishloadmaster/coreset-selection/internal/testutil"
)

// newTestRouter wires the API routes against a state manager rooted in temp
// directories, mirroring what InitState does at startup.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testutil.NewTestConfig(t)
	reg, err := registry.Open(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	state = &StateManager{
		config:   cfg,
		registry: reg,
		library:  services.NewLibraryService(cfg.Storage, reg),
		runner:   workflow.NewRunner(cfg, reg),
	}

	r := gin.New()
	apiV1 := r.Group("/api/v1")
	UploadRouter(apiV1)
	LibraryRouter(apiV1)
	ModelRouter(apiV1)
	return r
}

// multipartUpload builds a multipart body holding one file field.
func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadRejectsNonZip(t *testing.T) {
	r := newTestRouter(t)

	body, contentType := multipartUpload(t, "photo.jpg", []byte("not a zip"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "zip")
}

func TestUploadExtractsArchive(t *testing.T) {
	r := newTestRouter(t)

	archivePath := filepath.Join(t.TempDir(), "media.zip")
	testutil.WriteZip(t, archivePath, map[string][]byte{
		"one.png": testutil.TinyPNG(),
		"two.png": testutil.TinyPNG(),
	})
	content, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	body, contentType := multipartUpload(t, "media.zip", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Filename string `json:"filename"`
		Run      struct {
			Status    string `json:"status"`
			FolderID  string `json:"folder_id"`
			FileCount int    `json:"file_count"`
		} `json:"run"`
		Result struct {
			ImageCount int `json:"image_count"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "media.zip", resp.Filename)
	assert.Equal(t, "completed", resp.Run.Status)
	assert.Equal(t, 2, resp.Run.FileCount)
	assert.Equal(t, 2, resp.Result.ImageCount)

	// The extracted images are visible through the library endpoints.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.Run.FolderID+"/one.png")

	// The listings are annotated from the registry.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_status":"completed"`)
	assert.Contains(t, w.Body.String(), `"folder_id":"`+resp.Run.FolderID+`"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/folders/"+resp.Run.FolderID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"archive_name":"media.zip"`)
	assert.Contains(t, w.Body.String(), `"run_status":"completed"`)

	// A second upload of the same name gets a collision-free suffix.
	body, contentType = multipartUpload(t, "media.zip", content)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"filename":"media_1.zip"`)
}

// waitForRun polls the registry until the archive's run reaches a terminal
// state.
func waitForRun(t *testing.T, archive string) *registry.Run {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		runs, err := state.registry.List(context.Background())
		require.NoError(t, err)
		for _, run := range runs {
			if run.ArchiveName != archive {
				continue
			}
			if run.Status == registry.StatusCompleted || run.Status == registry.StatusFailed {
				return run
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run for %s never reached a terminal state", archive)
	return nil
}

func TestUploadBackgroundExtraction(t *testing.T) {
	r := newTestRouter(t)

	archivePath := filepath.Join(t.TempDir(), "media.zip")
	testutil.WriteZip(t, archivePath, map[string][]byte{
		"one.png": testutil.TinyPNG(),
	})
	content, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	body, contentType := multipartUpload(t, "media.zip", content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads?sync=false", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"processing"`)

	// The response returns before the extraction does; the registry carries
	// the outcome.
	run := waitForRun(t, "media.zip")
	assert.Equal(t, registry.StatusCompleted, run.Status)
	assert.Equal(t, 1, run.FileCount)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/images", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), run.FolderID+"/one.png")
}

func TestUploadBackgroundExtractionRecordsFailure(t *testing.T) {
	r := newTestRouter(t)

	body, contentType := multipartUpload(t, "broken.zip", []byte("not a zip at all"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads?sync=false", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	run := waitForRun(t, "broken.zip")
	assert.Equal(t, registry.StatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)
}

func TestUploadListAndDelete(t *testing.T) {
	r := newTestRouter(t)

	for _, name := range []string{"b.zip", "a.zip"} {
		path := filepath.Join(state.config.Storage.UploadDir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, strings.Index(w.Body.String(), "a.zip"), strings.Index(w.Body.String(), "b.zip"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/a.zip", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/a.zip", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteImageValidation(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/images", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/images?name=..%2Fescape.png", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/images?name=missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImproveModelEchoesRequest(t *testing.T) {
	r := newTestRouter(t)

	payload := `{"dataset_path":"static/images/abc","model_name":"resnet","sampling_factor":0.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/improve", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "received", resp["status"])
	assert.Equal(t, "static/images/abc", resp["dataset_path"])
	assert.Equal(t, "resnet", resp["model_name"])
	assert.Equal(t, 0.5, resp["sampling_factor"])
}

func TestImproveModelValidation(t *testing.T) {
	r := newTestRouter(t)

	cases := []string{
		`{"model_name":"resnet","sampling_factor":0.5}`,              // missing dataset_path
		`{"dataset_path":"x","sampling_factor":0.5}`,                 // missing model_name
		`{"dataset_path":"x","model_name":"m","sampling_factor":0}`,  // factor too low
		`{"dataset_path":"x","model_name":"m","sampling_factor":2}`,  // factor too high
		`{"dataset_path":"x","model_name":"m","sampling_factor":-1}`, // negative factor
	}
	for _, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/models/improve", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("payload %s", payload))
	}
}
