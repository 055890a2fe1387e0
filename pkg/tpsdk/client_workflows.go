package tpsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const apiPrefix = "/api/v1/tric"

// GetWorkflows lists the configured manual workflows, optionally filtered by
// enabled state and type.
func (c *Client) GetWorkflows(ctx context.Context, q WorkflowQuery) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, wrapValidation("invalid workflow query", err)
	}

	query := url.Values{}
	if q.Enabled != nil {
		query.Set("enabled", strconv.FormatBool(*q.Enabled))
	}
	if q.Type != "" {
		query.Set("type", string(q.Type))
	}

	return doJSON[[]Record](ctx, c, request{
		method: http.MethodGet,
		path:   apiPrefix + "/workflows",
		query:  query,
	})
}

// RunWorkflow triggers workflowID against the given incident or message IDs
// and returns the run descriptor.
func (c *Client) RunWorkflow(ctx context.Context, workflowID string, targetIDs []string) (Record, error) {
	id, err := pathID("workflow ID", workflowID)
	if err != nil {
		return nil, err
	}
	if err := validation.Validate(targetIDs, validation.Required, nonBlankItems); err != nil {
		return nil, wrapValidation("invalid target IDs", err)
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodPost,
		path:   apiPrefix + "/workflows/" + id + "/run",
		body:   runWorkflowRequest{TargetIDs: targetIDs},
	})
}

// GetWorkflowRunStatus reports the state of a workflow run.
func (c *Client) GetWorkflowRunStatus(ctx context.Context, runID string) (Record, error) {
	id, err := pathID("run ID", runID)
	if err != nil {
		return nil, err
	}

	return doJSON[Record](ctx, c, request{
		method: http.MethodGet,
		path:   apiPrefix + "/workflows/run/" + id,
	})
}
