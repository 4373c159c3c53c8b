package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/tasks"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockCredentialSource is a mock implementation of CredentialSource
type mockCredentialSource struct {
	creds map[string]pool.Credential
}

func (m *mockCredentialSource) ByAccountID(accountID string) (pool.Credential, bool) {
	cred, ok := m.creds[accountID]
	return cred, ok
}

// mockTranscodeRequester is a mock implementation of TranscodeRequester
type mockTranscodeRequester struct {
	err      error
	called   bool
	cred     pool.Credential
	videoID  string
	variants []string
}

func (m *mockTranscodeRequester) RequestTranscode(ctx context.Context, cred pool.Credential, videoID string, variants []string) error {
	m.called = true
	m.cred = cred
	m.videoID = videoID
	m.variants = variants
	return m.err
}

// mockTokenRecordPurger is a mock implementation of TokenRecordPurger
type mockTokenRecordPurger struct {
	deleted int64
	err     error
	cutoff  time.Time
}

func (m *mockTokenRecordPurger) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.deleted, m.err
}

func transcodeTask(t *testing.T, payload tasks.VideoTranscodePayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(tasks.TypeVideoTranscode, data)
}

func TestWorker_HandleVideoTranscode(t *testing.T) {
	acc1 := pool.Credential{AccountID: "acc1", AuthKey: "k1", AuthSecret: "s1"}

	tests := []struct {
		name          string
		payload       tasks.VideoTranscodePayload
		creds         map[string]pool.Credential
		requester     *mockTranscodeRequester
		expectedErr   bool
		expectedSkip  bool
		expectedCall  bool
		expectedVar   []string
	}{
		{
			name:         "success with explicit variants",
			payload:      tasks.VideoTranscodePayload{AccountID: "acc1", MediaID: "vid-1", Variants: []string{"1080p"}},
			creds:        map[string]pool.Credential{"acc1": acc1},
			requester:    &mockTranscodeRequester{},
			expectedCall: true,
			expectedVar:  []string{"1080p"},
		},
		{
			name:         "empty variants fall back to defaults",
			payload:      tasks.VideoTranscodePayload{AccountID: "acc1", MediaID: "vid-1"},
			creds:        map[string]pool.Credential{"acc1": acc1},
			requester:    &mockTranscodeRequester{},
			expectedCall: true,
			expectedVar:  tasks.DefaultVariants,
		},
		{
			name:         "unknown account skips retry",
			payload:      tasks.VideoTranscodePayload{AccountID: "gone", MediaID: "vid-1"},
			creds:        map[string]pool.Credential{"acc1": acc1},
			requester:    &mockTranscodeRequester{},
			expectedErr:  true,
			expectedSkip: true,
		},
		{
			name:         "host failure is retryable",
			payload:      tasks.VideoTranscodePayload{AccountID: "acc1", MediaID: "vid-1"},
			creds:        map[string]pool.Credential{"acc1": acc1},
			requester:    &mockTranscodeRequester{err: errors.New("host unavailable")},
			expectedErr:  true,
			expectedCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := NewWorker(zap.NewNop(), &mockCredentialSource{creds: tt.creds}, tt.requester, &mockTokenRecordPurger{})

			err := worker.HandleVideoTranscode(context.Background(), transcodeTask(t, tt.payload))

			if tt.expectedErr {
				require.Error(t, err)
				assert.Equal(t, tt.expectedSkip, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.expectedCall, tt.requester.called)
			if tt.expectedCall {
				assert.Equal(t, "vid-1", tt.requester.videoID)
				assert.Equal(t, "acc1", tt.requester.cred.AccountID)
			}
			if tt.expectedVar != nil {
				assert.Equal(t, tt.expectedVar, tt.requester.variants)
			}
		})
	}
}

func TestWorker_HandleVideoTranscode_MalformedPayload(t *testing.T) {
	requester := &mockTranscodeRequester{}
	worker := NewWorker(zap.NewNop(), &mockCredentialSource{}, requester, &mockTokenRecordPurger{})

	err := worker.HandleVideoTranscode(context.Background(), asynq.NewTask(tasks.TypeVideoTranscode, []byte("{not json")))

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.False(t, requester.called)
}

func TestWorker_PurgeExpiredTokens(t *testing.T) {
	purger := &mockTokenRecordPurger{deleted: 12}
	worker := NewWorker(zap.NewNop(), &mockCredentialSource{}, &mockTranscodeRequester{}, purger)

	before := time.Now()
	worker.PurgeExpiredTokens()

	// Cutoff is the current time; records still within their TTL survive
	assert.False(t, purger.cutoff.Before(before))
	assert.False(t, purger.cutoff.After(time.Now()))
}
