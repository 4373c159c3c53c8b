// Package tasks defines the background task types exchanged between the API
// and the worker over the asynq queue.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeVideoTranscode is the task type for derivative rendition requests
const TypeVideoTranscode = "video:transcode"

// QueueVideo is the queue transcode tasks are enqueued to
const QueueVideo = "video"

// DefaultVariants are the renditions requested after every successful upload
var DefaultVariants = []string{"720p", "480p", "360p"}

// VideoTranscodePayload carries everything the worker needs to request
// derivatives: the owning account, so the worker uses the same credential
// the video was uploaded under.
type VideoTranscodePayload struct {
	AccountID string   `json:"accountId"`
	MediaID   string   `json:"mediaId"`
	Variants  []string `json:"variants"`
}

// NewVideoTranscodeTask builds an asynq task for the given video
func NewVideoTranscodeTask(accountID, mediaID string, variants []string) (*asynq.Task, error) {
	payload, err := json.Marshal(VideoTranscodePayload{
		AccountID: accountID,
		MediaID:   mediaID,
		Variants:  variants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcode payload: %w", err)
	}

	return asynq.NewTask(TypeVideoTranscode, payload, asynq.Queue(QueueVideo), asynq.MaxRetry(5)), nil
}

// Enqueuer enqueues background tasks from the API process
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates a new task enqueuer
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{
		client: client,
	}
}

// EnqueueTranscode queues a derivative request for the uploaded video. The
// task has its own retry policy; a failure here never fails the upload.
func (e *Enqueuer) EnqueueTranscode(ctx context.Context, accountID, mediaID string) error {
	task, err := NewVideoTranscodeTask(accountID, mediaID, DefaultVariants)
	if err != nil {
		return err
	}

	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue transcode task: %w", err)
	}

	return nil
}
