package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/upload"
	"go.uber.org/zap"
)

// UploadPipeline defines the interface for upload pipeline operations
type UploadPipeline interface {
	// Accept spools the incoming stream to a temporary file, rejecting
	// non-video content and oversized bodies before they are absorbed
	Accept(ctx context.Context, r io.Reader, declaredType string) (*upload.Job, error)
	// Transfer relays the job to the backing host in chunks. The job's
	// temporary artifact is removed before Transfer returns, on every path.
	Transfer(ctx context.Context, job *upload.Job, title string) (*upload.Result, error)
}

// PoolStatus exposes the credential pool's health view
type PoolStatus interface {
	Size() int
	Snapshot() []pool.HealthSnapshot
}

// VideoUploadHandler handles large video upload HTTP requests
type VideoUploadHandler struct {
	BaseHandler
	pipeline  UploadPipeline
	pool      PoolStatus
	maxSize   int64
	chunkSize int64
}

// NewVideoUploadHandler creates a new video upload handler
func NewVideoUploadHandler(pipeline UploadPipeline, poolStatus PoolStatus, maxSize, chunkSize int64, logger *zap.Logger) *VideoUploadHandler {
	return &VideoUploadHandler{
		BaseHandler: BaseHandler{Logger: logger},
		pipeline:    pipeline,
		pool:        poolStatus,
		maxSize:     maxSize,
		chunkSize:   chunkSize,
	}
}

// uploadResponse is the success body of POST /videos
type uploadResponse struct {
	SecureURL       string   `json:"secureUrl"`
	MediaID         string   `json:"mediaId"`
	DurationSeconds int      `json:"durationSeconds"`
	DerivedVariants []string `json:"derivedVariants"`
}

// videoPart walks the multipart stream to the "video" field without buffering
// the body in memory
func videoPart(r *http.Request) (io.ReadCloser, string, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, "", "", errors.New("expected multipart/form-data")
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", "", err
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, "", "", errors.New("video field is required")
		}
		if err != nil {
			return nil, "", "", err
		}
		if part.FormName() == "video" {
			declaredType := part.Header.Get("Content-Type")
			title := strings.TrimSuffix(filepath.Base(part.FileName()), filepath.Ext(part.FileName()))
			if title == "" || title == "." {
				title = "video"
			}
			return part, declaredType, title, nil
		}
		part.Close()
	}
}

// UploadVideo handles POST /videos
// @Summary Upload a lesson video
// @Description Upload a large video to the backing host. The stream is relayed in bounded chunks; local temporary state is removed before the response is sent.
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param video formData file true "Video file"
// @Success 200 {object} uploadResponse
// @Failure 400 {object} map[string]string "Not a video"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 413 {object} map[string]string "Upload exceeds the size ceiling"
// @Failure 500 {object} map[string]string "Transfer failure"
// @Router /videos [post]
func (h *VideoUploadHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	part, declaredType, title, err := videoPart(r)
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer part.Close()

	job, err := h.pipeline.Accept(r.Context(), part, declaredType)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrUnsupportedMediaType):
			h.RespondError(w, http.StatusBadRequest, "only video uploads are accepted")
		case errors.Is(err, upload.ErrPayloadTooLarge):
			h.RespondError(w, http.StatusRequestEntityTooLarge, "upload exceeds the maximum allowed size")
		default:
			h.Logger.Error("failed to accept upload", zap.Error(err))
			h.RespondError(w, http.StatusInternalServerError, "failed to accept upload")
		}
		return
	}

	result, err := h.pipeline.Transfer(r.Context(), job, title)
	if err != nil {
		// The underlying cause stays in the logs; the response is redacted
		h.Logger.Error("video transfer failed", zap.Error(err), zap.String("title", title))
		h.RespondError(w, http.StatusInternalServerError, "video upload failed")
		return
	}

	h.RespondJSON(w, http.StatusOK, uploadResponse{
		SecureURL:       result.SecureURL,
		MediaID:         result.MediaID,
		DurationSeconds: result.DurationSeconds,
		DerivedVariants: result.Variants,
	})
}

// healthResponse is the body of GET /videos/health
type healthResponse struct {
	Status         string                `json:"status"`
	Accounts       []pool.HealthSnapshot `json:"accounts"`
	MaxUploadBytes int64                 `json:"maxUploadBytes"`
	ChunkBytes     int64                 `json:"chunkBytes"`
}

// Health handles GET /videos/health
// @Summary Upload pool health
// @Description Report backing-account pool readiness and configured upload limits
// @Tags videos
// @Produce json
// @Success 200 {object} healthResponse
// @Router /videos/health [get]
func (h *VideoUploadHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	healthy := 0
	snapshot := h.pool.Snapshot()
	for _, account := range snapshot {
		if account.Healthy {
			healthy++
		}
	}
	if healthy == 0 {
		status = "degraded"
	}

	h.RespondJSON(w, http.StatusOK, healthResponse{
		Status:         status,
		Accounts:       snapshot,
		MaxUploadBytes: h.maxSize,
		ChunkBytes:     h.chunkSize,
	})
}
