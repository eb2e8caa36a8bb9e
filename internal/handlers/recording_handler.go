package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/solocast/backend/internal/metrics"
	"github.com/solocast/backend/internal/models"
	"github.com/solocast/backend/internal/recording"
	"github.com/solocast/backend/internal/transcode"
)

type RecordingHandler struct {
	store     *recording.Store
	assembler *recording.Assembler
	jobs      *transcode.Manager
	metrics   *metrics.Metrics
}

func NewRecordingHandler(store *recording.Store, assembler *recording.Assembler, jobs *transcode.Manager, m *metrics.Metrics) *RecordingHandler {
	return &RecordingHandler{store: store, assembler: assembler, jobs: jobs, metrics: m}
}

// Upload handles POST /api/recordings/:kind - a single-shot multipart
// upload that lands on disk and immediately enters the transcode
// pipeline.
func (h *RecordingHandler) Upload(c *gin.Context) {
	kind := c.Param("kind")
	dir, err := h.store.KindDir(kind)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid recording kind")
		return
	}

	file, err := c.FormFile("recording")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "No recording file received")
		return
	}

	name := h.store.FileName(c.PostForm("username"), file.Filename)
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		log.Printf("Error saving recording upload: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to store recording")
		return
	}

	h.metrics.IncUpload()
	fileURL := h.store.FileURL(kind, name)
	jobID := h.jobs.Start(dst, fileURL)

	c.JSON(http.StatusOK, gin.H{
		"jobId":    jobID,
		"status":   models.JobProcessing,
		"fileName": name,
		"fileUrl":  fileURL,
	})
}

// UploadChunk handles POST /api/recordings/:kind/chunk. Fragments are
// appended in arrival order; the final fragment finalizes the file and
// starts the conversion.
func (h *RecordingHandler) UploadChunk(c *gin.Context) {
	kind := c.Param("kind")
	uploadID := c.PostForm("uploadId")
	if uploadID == "" {
		ErrorResponse(c, http.StatusBadRequest, "Missing uploadId")
		return
	}

	file, err := c.FormFile("recording")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "No recording chunk received")
		return
	}
	data, err := readAll(file.Open())
	if err != nil {
		log.Printf("Error reading recording chunk: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to process recording chunk")
		return
	}

	index := -1
	if v := c.PostForm("index"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			index = n
		}
	}
	isLast := parseBool(c.PostForm("isLast"))

	res, err := h.assembler.Append(kind, uploadID, c.PostForm("username"), file.Filename, index, isLast, data)
	switch {
	case errors.Is(err, recording.ErrMissingUploadID), errors.Is(err, recording.ErrEmptyChunk):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, recording.ErrInvalidKind):
		ErrorResponse(c, http.StatusBadRequest, "Invalid recording kind")
		return
	case err != nil:
		log.Printf("Error handling chunk upload: %v", err)
		ErrorResponse(c, http.StatusInternalServerError, "Failed to process recording chunk")
		return
	}

	if res.Finalized {
		h.metrics.IncUpload()
		jobID := h.jobs.Start(res.FilePath, res.FileURL)
		c.JSON(http.StatusOK, gin.H{
			"jobId":    jobID,
			"status":   models.JobProcessing,
			"fileName": res.FileName,
			"fileUrl":  res.FileURL,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"uploadId": uploadID,
		"index":    res.Index,
	})
}

// ConversionStatus handles GET /api/conversion-status/:jobId.
func (h *RecordingHandler) ConversionStatus(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("jobId"))
	if !ok {
		ErrorResponse(c, http.StatusNotFound, "Job not found")
		return
	}
	c.JSON(http.StatusOK, job)
}

// Serve handles GET /recordings/:kind/:fileName. A request for the
// pre-conversion name redirects to the converted file once it exists.
func (h *RecordingHandler) Serve(c *gin.Context) {
	kind := c.Param("kind")
	name := c.Param("fileName")

	path, redirectTo, err := h.store.Resolve(kind, name)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid recording path")
		return
	}
	if redirectTo != "" {
		c.Redirect(http.StatusFound, h.store.FileURL(kind, redirectTo))
		return
	}
	if _, err := os.Stat(path); err != nil {
		ErrorResponse(c, http.StatusNotFound, "Recording not found")
		return
	}
	c.File(path)
}

func readAll(f io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1"
}
