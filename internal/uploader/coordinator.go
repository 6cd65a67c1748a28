// Package uploader performs the authenticated BAR file upload with a single
// automatic retry on a stale credential.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jareeve/ace-bar-file-syncer/internal/api"
	"github.com/jareeve/ace-bar-file-syncer/internal/metrics"
	"github.com/jareeve/ace-bar-file-syncer/internal/token"
)

// retryBudget is the number of additional upload attempts permitted after a
// stale-credential rejection.
const retryBudget = 1

// Coordinator orchestrates one upload attempt: obtain a token, upload, and
// on a 401 invalidate the token and retry exactly once. It never terminates
// the process; every failure is returned to the caller.
type Coordinator struct {
	tokens  *token.Cache
	client  *api.Client
	metrics *metrics.SyncerMetrics
}

// New creates an upload coordinator.
func New(tokens *token.Cache, client *api.Client, m *metrics.SyncerMetrics) *Coordinator {
	return &Coordinator{tokens: tokens, client: client, metrics: m}
}

// Upload pushes the BAR file at path to App Connect and returns the parsed
// response body. The retry budget bounds the 401 retry structurally: the
// loop can only come around again by consuming from it.
func (c *Coordinator) Upload(ctx context.Context, path string) (map[string]any, error) {
	fileName := filepath.Base(path)
	logger := log.With().
		Str("attempt_id", uuid.NewString()).
		Str("file", fileName).
		Logger()

	if err := CheckArchive(path); err != nil {
		logger.Warn().Err(err).Msg("file does not parse as a BAR archive, uploading anyway")
	}

	start := time.Now()
	budget := retryBudget
	for {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			c.metrics.UploadFailures.WithLabelValues("auth").Inc()
			logger.Error().Err(err).Msg("token acquisition failed")
			return nil, fmt.Errorf("authenticate: %w", err)
		}

		result, err := c.client.UploadBAR(ctx, path, fileName, tok)
		var authErr *api.UploadAuthError
		if errors.As(err, &authErr) && budget > 0 {
			budget--
			c.metrics.UploadRetries.Inc()
			c.tokens.Invalidate()
			logger.Warn().Msg("upload rejected with 401, refreshing token and retrying")
			continue
		}
		if err != nil {
			c.metrics.UploadFailures.WithLabelValues(failureReason(err)).Inc()
			logger.Error().Err(err).Msg("upload failed")
			return nil, err
		}

		c.metrics.UploadsTotal.Inc()
		c.metrics.UploadDuration.Observe(time.Since(start).Seconds())
		logger.Info().Dur("took", time.Since(start)).Msg("uploaded BAR file")
		return result, nil
	}
}

func failureReason(err error) string {
	var authErr *api.UploadAuthError
	var uploadErr *api.UploadError
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &uploadErr):
		return "status"
	default:
		return "transport"
	}
}
