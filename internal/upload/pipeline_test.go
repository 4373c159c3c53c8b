package upload

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/config"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/vhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockHost is a mock implementation of Host
type mockHost struct {
	mu            sync.Mutex
	createErr     error
	chunkErr      error
	chunkFailures int // fail this many chunk calls, then succeed
	finalizeErr   error
	chunkCalls    int
	chunkSizes    []int
	offsets       []int64
	info          *vhost.VideoInfo
}

func (m *mockHost) CreateVideo(ctx context.Context, cred pool.Credential, title string) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	return "vid-test", nil
}

func (m *mockHost) UploadChunk(ctx context.Context, cred pool.Credential, videoID string, chunk []byte, offset, totalSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkCalls++
	if m.chunkFailures > 0 {
		m.chunkFailures--
		return errors.New("transient chunk error")
	}
	if m.chunkErr != nil {
		return m.chunkErr
	}
	m.chunkSizes = append(m.chunkSizes, len(chunk))
	m.offsets = append(m.offsets, offset)
	return nil
}

func (m *mockHost) Finalize(ctx context.Context, cred pool.Credential, videoID string) (*vhost.VideoInfo, error) {
	if m.finalizeErr != nil {
		return nil, m.finalizeErr
	}
	if m.info != nil {
		return m.info, nil
	}
	return &vhost.VideoInfo{SecureURL: "https://cdn.example/vid-test", DurationSeconds: 120}, nil
}

// mockEnqueuer is a mock implementation of TranscodeEnqueuer
type mockEnqueuer struct {
	err       error
	called    bool
	accountID string
	mediaID   string
}

func (m *mockEnqueuer) EnqueueTranscode(ctx context.Context, accountID, mediaID string) error {
	m.called = true
	m.accountID = accountID
	m.mediaID = mediaID
	return m.err
}

func testPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.Load([]config.HostAccount{
		{AccountID: "acc1", AuthKey: "k1", AuthSecret: "s1"},
	})
	require.NoError(t, err)
	return p
}

func newTestPipeline(t *testing.T, host Host, enqueuer TranscodeEnqueuer, maxSize, chunkSize int64) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	p := NewPipeline(testPool(t), host, enqueuer, dir, maxSize, chunkSize, zap.NewNop())
	return p, dir
}

// dirEntries returns the names of files currently in dir
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// videoBytes sniffs as application/octet-stream, passing on the declared type
func videoBytes(n int) []byte {
	return make([]byte, n)
}

func TestPipeline_Accept(t *testing.T) {
	tests := []struct {
		name         string
		declaredType string
		body         []byte
		maxSize      int64
		expectedErr  error
		expectedSize int64
	}{
		{
			name:         "accepts declared video",
			declaredType: "video/mp4",
			body:         videoBytes(1024),
			maxSize:      1 << 20,
			expectedSize: 1024,
		},
		{
			name:         "accepts body shorter than sniff window",
			declaredType: "video/webm",
			body:         videoBytes(10),
			maxSize:      1 << 20,
			expectedSize: 10,
		},
		{
			name:         "rejects non-video declared type",
			declaredType: "application/pdf",
			body:         videoBytes(1024),
			maxSize:      1 << 20,
			expectedErr:  ErrUnsupportedMediaType,
		},
		{
			name:         "rejects sniffed html despite declared video type",
			declaredType: "video/mp4",
			body:         []byte("<html><body>not a video</body></html>"),
			maxSize:      1 << 20,
			expectedErr:  ErrUnsupportedMediaType,
		},
		{
			name:         "rejects oversized body",
			declaredType: "video/mp4",
			body:         videoBytes(2048),
			maxSize:      1024,
			expectedErr:  ErrPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, dir := newTestPipeline(t, &mockHost{}, &mockEnqueuer{}, tt.maxSize, 256)

			job, err := p.Accept(context.Background(), bytes.NewReader(tt.body), tt.declaredType)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, job)
				// No temporary artifact survives a rejection
				assert.Empty(t, dirEntries(t, dir))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSize, job.Size)
			assert.FileExists(t, job.Path())
		})
	}
}

func TestPipeline_Accept_RejectsTypeBeforePersisting(t *testing.T) {
	p, dir := newTestPipeline(t, &mockHost{}, &mockEnqueuer{}, 1<<20, 256)

	reader := strings.NewReader("definitely not a video")
	_, err := p.Accept(context.Background(), reader, "text/plain")

	assert.ErrorIs(t, err, ErrUnsupportedMediaType)
	assert.Empty(t, dirEntries(t, dir))
	// The stream was not consumed at all
	assert.Equal(t, reader.Size(), int64(reader.Len()))
}

func TestPipeline_Accept_StopsReadingPastCeiling(t *testing.T) {
	p, _ := newTestPipeline(t, &mockHost{}, &mockEnqueuer{}, 1024, 256)

	// 10MB body against a 1KB ceiling
	reader := bytes.NewReader(videoBytes(10 << 20))
	_, err := p.Accept(context.Background(), reader, "video/mp4")

	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	// The bulk of the body was never absorbed
	assert.Greater(t, reader.Len(), 9<<20)
}

func TestPipeline_Transfer(t *testing.T) {
	t.Run("success streams fixed-size chunks and enqueues transcode", func(t *testing.T) {
		host := &mockHost{}
		enqueuer := &mockEnqueuer{}
		p, dir := newTestPipeline(t, host, enqueuer, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(2500)), "video/mp4")
		require.NoError(t, err)

		result, err := p.Transfer(context.Background(), job, "lesson-intro")

		require.NoError(t, err)
		assert.Equal(t, "vid-test", result.MediaID)
		assert.Equal(t, "https://cdn.example/vid-test", result.SecureURL)
		assert.Equal(t, 120, result.DurationSeconds)

		// 2500 bytes in 1000-byte chunks: 1000, 1000, 500
		assert.Equal(t, []int{1000, 1000, 500}, host.chunkSizes)
		assert.Equal(t, []int64{0, 1000, 2000}, host.offsets)

		assert.True(t, enqueuer.called)
		assert.Equal(t, "acc1", enqueuer.accountID)
		assert.Equal(t, "vid-test", enqueuer.mediaID)

		// Temporary artifact is gone after the transfer
		assert.Empty(t, dirEntries(t, dir))
	})

	t.Run("chunk failure retries then aborts with cleanup", func(t *testing.T) {
		host := &mockHost{chunkErr: errors.New("host unavailable")}
		p, dir := newTestPipeline(t, host, &mockEnqueuer{}, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(500)), "video/mp4")
		require.NoError(t, err)

		_, err = p.Transfer(context.Background(), job, "lesson-intro")

		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Equal(t, maxChunkRetries, host.chunkCalls)
		assert.Empty(t, dirEntries(t, dir))

		// The failure was reported to the pool
		snap := p.pool.Snapshot()
		require.Len(t, snap, 1)
		assert.Equal(t, 1, snap[0].Failures)
	})

	t.Run("transient chunk failure recovers within the retry bound", func(t *testing.T) {
		host := &mockHost{chunkFailures: 2}
		p, dir := newTestPipeline(t, host, &mockEnqueuer{}, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(500)), "video/mp4")
		require.NoError(t, err)

		result, err := p.Transfer(context.Background(), job, "lesson-intro")

		require.NoError(t, err)
		assert.Equal(t, "vid-test", result.MediaID)
		assert.Empty(t, dirEntries(t, dir))

		// Success resets the pool bookkeeping
		snap := p.pool.Snapshot()
		require.Len(t, snap, 1)
		assert.True(t, snap[0].Healthy)
	})

	t.Run("create failure cleans up and reports", func(t *testing.T) {
		host := &mockHost{createErr: errors.New("account suspended")}
		p, dir := newTestPipeline(t, host, &mockEnqueuer{}, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(500)), "video/mp4")
		require.NoError(t, err)

		_, err = p.Transfer(context.Background(), job, "lesson-intro")

		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Empty(t, dirEntries(t, dir))
	})

	t.Run("canceled context aborts with cleanup", func(t *testing.T) {
		host := &mockHost{}
		p, dir := newTestPipeline(t, host, &mockEnqueuer{}, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(2500)), "video/mp4")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = p.Transfer(ctx, job, "lesson-intro")

		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Empty(t, dirEntries(t, dir))
	})

	t.Run("enqueue failure does not fail the upload", func(t *testing.T) {
		host := &mockHost{}
		enqueuer := &mockEnqueuer{err: errors.New("queue down")}
		p, dir := newTestPipeline(t, host, enqueuer, 1<<20, 1000)

		job, err := p.Accept(context.Background(), bytes.NewReader(videoBytes(500)), "video/mp4")
		require.NoError(t, err)

		result, err := p.Transfer(context.Background(), job, "lesson-intro")

		require.NoError(t, err)
		assert.Equal(t, "vid-test", result.MediaID)
		assert.Empty(t, dirEntries(t, dir))
	})
}
