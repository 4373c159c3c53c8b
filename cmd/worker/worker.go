package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/pool"
	"github.com/click2025-space493/learnova-paltform-sub001/internal/tasks"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TranscodeRequester defines the backing-service call the worker needs
type TranscodeRequester interface {
	// RequestTranscode asks the host to derive the given renditions
	RequestTranscode(ctx context.Context, cred pool.Credential, videoID string, variants []string) error
}

// TokenRecordPurger defines the repository methods the purge job needs
type TokenRecordPurger interface {
	// DeleteExpired removes token usage records whose expiry is before cutoff
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// CredentialSource resolves a backing account by its identifier
type CredentialSource interface {
	ByAccountID(accountID string) (pool.Credential, bool)
}

// Worker handles background task processing
type Worker struct {
	logger    *zap.Logger
	creds     CredentialSource
	host      TranscodeRequester
	tokenRepo TokenRecordPurger
}

// NewWorker creates a new worker instance
func NewWorker(logger *zap.Logger, creds CredentialSource, host TranscodeRequester, tokenRepo TokenRecordPurger) *Worker {
	return &Worker{
		logger:    logger,
		creds:     creds,
		host:      host,
		tokenRepo: tokenRepo,
	}
}

// HandleVideoTranscode requests derivative renditions for an uploaded video.
// The request is made under the account the video was uploaded with; asynq
// retries the task on error.
func (w *Worker) HandleVideoTranscode(ctx context.Context, t *asynq.Task) error {
	var payload tasks.VideoTranscodePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A malformed payload will never succeed; skip retries
		w.logger.Error("Failed to decode transcode payload", zap.Error(err))
		return fmt.Errorf("invalid transcode payload: %v: %w", err, asynq.SkipRetry)
	}

	cred, ok := w.creds.ByAccountID(payload.AccountID)
	if !ok {
		// The owning account was removed from configuration; retrying under a
		// different account would orphan the derivatives
		w.logger.Error("Transcode task references unknown account",
			zap.String("account_id", payload.AccountID),
			zap.String("media_id", payload.MediaID),
		)
		return fmt.Errorf("unknown account %q: %w", payload.AccountID, asynq.SkipRetry)
	}

	variants := payload.Variants
	if len(variants) == 0 {
		variants = tasks.DefaultVariants
	}

	if err := w.host.RequestTranscode(ctx, cred, payload.MediaID, variants); err != nil {
		w.logger.Error("Failed to request transcode",
			zap.Error(err),
			zap.String("media_id", payload.MediaID),
		)
		return err
	}

	w.logger.Info("Transcode requested",
		zap.String("media_id", payload.MediaID),
		zap.Strings("variants", variants),
	)
	return nil
}

// PurgeExpiredTokens removes playback token records past their expiry. Expiry
// is enforced by signature verification; this only reclaims storage.
func (w *Worker) PurgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := w.tokenRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		w.logger.Error("Failed to purge expired playback tokens", zap.Error(err))
		return
	}

	if deleted > 0 {
		w.logger.Info("Purged expired playback tokens", zap.Int64("deleted", deleted))
	}
}
