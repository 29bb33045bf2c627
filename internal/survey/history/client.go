package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"NYCU-SDC/survey-wizard-backend/internal/apiclient"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Client talks to the remote submission API. It does not retry; the employee
// retries from the page.
type Client struct {
	logger *zap.Logger
	tracer trace.Tracer
	api    *apiclient.Client
}

func NewClient(logger *zap.Logger, api *apiclient.Client) *Client {
	return &Client{
		logger: logger,
		tracer: otel.Tracer("history/client"),
		api:    api,
	}
}

// List returns the submission history. A non-empty employeeID is passed to the
// API as a filter, but callers must still match ids themselves since not every
// deployment honours it. Records that cannot be decoded are skipped, so one bad
// entry never hides the rest of the history.
func (c *Client) List(ctx context.Context, employeeID string) ([]Submission, error) {
	traceCtx, span := c.tracer.Start(ctx, "List")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	path := "/submissions"
	if employeeID != "" {
		path += "?" + url.Values{"employeeID": []string{employeeID}}.Encode()
	}

	var entries []json.RawMessage
	err := c.api.Do(traceCtx, "list submissions", http.MethodGet, path, nil, &entries)
	if err != nil {
		logger.Error("Failed to list submissions", zap.Error(err), zap.String("employee_id", employeeID))
		span.RecordError(err)
		return nil, err
	}

	submissions := make([]Submission, 0, len(entries))
	for i, entry := range entries {
		var submission Submission
		err := json.Unmarshal(entry, &submission)
		if err != nil {
			logger.Warn("Skipping malformed submission record", zap.Int("index", i), zap.Error(err))
			continue
		}
		submissions = append(submissions, submission)
	}

	return submissions, nil
}

// Create posts a finished survey. The reply body is ignored.
func (c *Client) Create(ctx context.Context, payload SubmissionPayload) error {
	traceCtx, span := c.tracer.Start(ctx, "Create")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	err := c.api.Do(traceCtx, "create submission", http.MethodPost, "/submissions", payload, nil)
	if err != nil {
		logger.Error("Failed to create submission", zap.Error(err), zap.String("employee_id", payload.EmployeeID))
		span.RecordError(err)
		return err
	}

	logger.Info("Created submission", zap.String("employee_id", payload.EmployeeID))
	return nil
}
