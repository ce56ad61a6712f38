package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/campus-events/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	failureRetry     = "retry"
	failureDiscarded = "discarded"
)

// FailureHandler counts and logs failed job attempts. The last attempt of a
// job is logged at error, earlier ones at warn. A nil logger only counts.
type FailureHandler struct {
	logger *slog.Logger
}

func NewFailureHandler(logger *slog.Logger) *FailureHandler {
	return &FailureHandler{logger: logger}
}

func (h *FailureHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.record(ctx, job, err, "")
	return nil
}

func (h *FailureHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.record(ctx, job, fmt.Errorf("panic: %v", panicVal), trace)
	return nil
}

func (h *FailureHandler) record(ctx context.Context, job *rivertype.JobRow, err error, trace string) {
	outcome, level, msg := failureRetry, slog.LevelWarn, "job attempt failed, will retry"
	if job.Attempt >= job.MaxAttempts {
		outcome, level, msg = failureDiscarded, slog.LevelError, "job failed on its last attempt"
	}
	metrics.RiverJobFailures.WithLabelValues(job.Kind, outcome).Inc()

	if h.logger == nil {
		return
	}
	attrs := []any{
		"job_id", job.ID,
		"kind", job.Kind,
		"queue", job.Queue,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	}
	if trace != "" {
		attrs = append(attrs, "trace", trace)
	}
	h.logger.Log(ctx, level, msg, attrs...)
}
