// Package upload relays large video files to the backing host in bounded
// chunks, with health reporting to the credential pool and guaranteed cleanup
// of local temporary state on every exit path.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/vhost"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client-side rejections, reported immediately with no retry
var (
	// ErrUnsupportedMediaType means the declared or sniffed type is not a video
	ErrUnsupportedMediaType = errors.New("upload is not a video")

	// ErrPayloadTooLarge means the stream exceeded the configured ceiling
	ErrPayloadTooLarge = errors.New("upload exceeds the maximum allowed size")
)

// ErrUploadFailed wraps a transfer failure after chunk retries are exhausted
var ErrUploadFailed = errors.New("upload to video host failed")

// maxChunkRetries bounds per-chunk retry attempts before the job is aborted
const maxChunkRetries = 3

// sniffLen is how many leading bytes are inspected for content sniffing
const sniffLen = 512

// Host defines the backing-service operations the pipeline needs
type Host interface {
	// CreateVideo registers a new video object and returns its identifier
	CreateVideo(ctx context.Context, cred pool.Credential, title string) (string, error)
	// UploadChunk uploads one byte range of the video
	UploadChunk(ctx context.Context, cred pool.Credential, videoID string, chunk []byte, offset, totalSize int64) error
	// Finalize marks the upload complete and returns the playable video info
	Finalize(ctx context.Context, cred pool.Credential, videoID string) (*vhost.VideoInfo, error)
}

// TranscodeEnqueuer queues derivative requests after a successful transfer
type TranscodeEnqueuer interface {
	EnqueueTranscode(ctx context.Context, accountID, mediaID string) error
}

// Result describes a completed upload
type Result struct {
	SecureURL       string
	MediaID         string
	DurationSeconds int
	Variants        []string
}

// Pipeline accepts producer uploads and relays them to the host selected by
// the credential pool
type Pipeline struct {
	pool      *pool.Pool
	host      Host
	enqueuer  TranscodeEnqueuer
	tempDir   string
	maxSize   int64
	chunkSize int64
	logger    *zap.Logger
}

// NewPipeline creates a new upload pipeline
func NewPipeline(
	credPool *pool.Pool,
	host Host,
	enqueuer TranscodeEnqueuer,
	tempDir string,
	maxSize, chunkSize int64,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		pool:      credPool,
		host:      host,
		enqueuer:  enqueuer,
		tempDir:   tempDir,
		maxSize:   maxSize,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// isVideoType reports whether the content type names a video format
func isVideoType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

// Accept validates the incoming stream and spools it to a temporary file,
// enforcing the size ceiling while copying so an oversized body is never
// fully absorbed. Type rejection happens before any byte reaches disk.
func (p *Pipeline) Accept(ctx context.Context, r io.Reader, declaredType string) (*Job, error) {
	if !isVideoType(declaredType) {
		return nil, ErrUnsupportedMediaType
	}

	// Sniff the leading bytes before touching the filesystem. Containers the
	// sniffer cannot name come back as octet-stream; those pass on the
	// declared type alone.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read upload stream: %w", err)
	}
	head = head[:n]

	sniffed := http.DetectContentType(head)
	if !isVideoType(sniffed) && sniffed != "application/octet-stream" {
		return nil, ErrUnsupportedMediaType
	}

	tmp, err := os.CreateTemp(p.tempDir, "upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}

	job := &Job{path: tmp.Name(), MediaType: declaredType}

	written, err := p.spool(tmp, head, r)
	closeErr := tmp.Close()
	if err != nil {
		job.cleanup()
		return nil, err
	}
	if closeErr != nil {
		job.cleanup()
		return nil, fmt.Errorf("failed to close temporary file: %w", closeErr)
	}

	job.Size = written
	return job, nil
}

// spool writes the sniffed head plus the rest of the stream, stopping as soon
// as the ceiling is crossed rather than after the body is consumed
func (p *Pipeline) spool(dst io.Writer, head []byte, r io.Reader) (int64, error) {
	if int64(len(head)) > p.maxSize {
		return 0, ErrPayloadTooLarge
	}
	if _, err := dst.Write(head); err != nil {
		return 0, fmt.Errorf("failed to write temporary file: %w", err)
	}

	written := int64(len(head))
	remaining := p.maxSize - written

	// Reading one byte past the ceiling detects overflow without absorbing
	// the rest of an arbitrarily large body
	n, err := io.Copy(dst, io.LimitReader(r, remaining+1))
	if err != nil {
		return 0, fmt.Errorf("failed to write temporary file: %w", err)
	}
	written += n
	if written > p.maxSize {
		return 0, ErrPayloadTooLarge
	}

	return written, nil
}

// Transfer streams the job to one credential chosen from the pool. The same
// credential is used for the whole job; a partially uploaded object under one
// account's namespace is never completed under another's. The job's temporary
// artifact is removed before Transfer returns, on every path.
func (p *Pipeline) Transfer(ctx context.Context, job *Job, title string) (*Result, error) {
	defer job.cleanup()

	cred := p.pool.Select()

	// uuid suffix keeps concurrent jobs from ever colliding on object names
	remoteName := fmt.Sprintf("%s-%s", title, uuid.New().String())

	videoID, err := p.host.CreateVideo(ctx, cred, remoteName)
	if err != nil {
		p.pool.ReportFailure(cred)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if err := p.streamChunks(ctx, cred, videoID, job); err != nil {
		p.pool.ReportFailure(cred)
		return nil, err
	}

	info, err := p.host.Finalize(ctx, cred, videoID)
	if err != nil {
		p.pool.ReportFailure(cred)
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	p.pool.ReportSuccess(cred)

	// Derivative generation is queued with its own retry policy; its failure
	// never fails the upload
	if err := p.enqueuer.EnqueueTranscode(ctx, cred.AccountID, videoID); err != nil {
		p.logger.Error("failed to enqueue transcode task",
			zap.Error(err),
			zap.String("media_id", videoID),
		)
	}

	return &Result{
		SecureURL:       info.SecureURL,
		MediaID:         videoID,
		DurationSeconds: info.DurationSeconds,
		Variants:        info.Variants,
	}, nil
}

// streamChunks sends the spooled file in fixed-size chunks, retrying each
// chunk up to maxChunkRetries before aborting the job
func (p *Pipeline) streamChunks(ctx context.Context, cred pool.Credential, videoID string, job *Job) error {
	file, err := os.Open(job.path)
	if err != nil {
		return fmt.Errorf("failed to open temporary file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, p.chunkSize)
	var offset int64

	for offset < job.Size {
		n, err := io.ReadFull(file, buf)
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("failed to read temporary file: %w", err)
		}
		chunk := buf[:n]

		if err := p.sendChunk(ctx, cred, videoID, chunk, offset, job.Size); err != nil {
			return err
		}

		offset += int64(n)
	}

	return nil
}

// sendChunk uploads one chunk with bounded retries. A canceled context (the
// producer disconnected) aborts immediately.
func (p *Pipeline) sendChunk(ctx context.Context, cred pool.Credential, videoID string, chunk []byte, offset, total int64) error {
	var lastErr error
	for attempt := 1; attempt <= maxChunkRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: upload aborted: %v", ErrUploadFailed, err)
		}

		lastErr = p.host.UploadChunk(ctx, cred, videoID, chunk, offset, total)
		if lastErr == nil {
			return nil
		}

		p.logger.Warn("chunk upload failed",
			zap.Error(lastErr),
			zap.String("account_id", cred.AccountID),
			zap.String("media_id", videoID),
			zap.Int64("offset", offset),
			zap.Int("attempt", attempt),
		)
	}

	return fmt.Errorf("%w: chunk at offset %d failed after %d attempts: %v", ErrUploadFailed, offset, maxChunkRetries, lastErr)
}
