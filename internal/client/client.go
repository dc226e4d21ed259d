// Package client talks to a hawkd server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rndsolutions/HawkCD/internal/api"
	"github.com/rndsolutions/HawkCD/internal/domain"
)

const defaultBaseURL = "http://127.0.0.1:8080"

// Client is a hawkd API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL.
// Pass an empty string to use the local default.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListPipelines returns every pipeline run.
func (c *Client) ListPipelines(ctx context.Context) ([]domain.Pipeline, error) {
	var pipelines []domain.Pipeline
	err := c.do(ctx, http.MethodGet, "/pipelines", nil, &pipelines)
	return pipelines, err
}

// GetPipeline returns one pipeline run with its stage runs.
func (c *Client) GetPipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := c.do(ctx, http.MethodGet, "/pipelines/"+url.PathEscape(id), nil, &p)
	return p, err
}

// TriggerPipeline starts a new run of a pipeline definition.
func (c *Client) TriggerPipeline(ctx context.Context, definitionID, reason string) (domain.Pipeline, error) {
	var p domain.Pipeline
	req := api.TriggerRequest{PipelineDefinitionID: definitionID, TriggerReason: reason}
	err := c.do(ctx, http.MethodPost, "/pipelines", req, &p)
	return p, err
}

// PausePipeline toggles a run between PAUSED and IN_PROGRESS.
func (c *Client) PausePipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := c.do(ctx, http.MethodPost, "/pipelines/"+url.PathEscape(id)+"/pause", nil, &p)
	return p, err
}

// CancelPipeline flags a run for cancellation.
func (c *Client) CancelPipeline(ctx context.Context, id string) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := c.do(ctx, http.MethodPost, "/pipelines/"+url.PathEscape(id)+"/cancel", nil, &p)
	return p, err
}

// GetStage returns a stage of a current stage run.
func (c *Client) GetStage(ctx context.Context, id string) (domain.Stage, error) {
	var s domain.Stage
	err := c.do(ctx, http.MethodGet, "/stages/"+url.PathEscape(id), nil, &s)
	return s, err
}

// RerunStage restarts a pipeline at the given stage. A nil jobDefinitionIDs
// reruns the stage with no jobs.
func (c *Client) RerunStage(ctx context.Context, stageID string, jobDefinitionIDs []string) (domain.Pipeline, error) {
	var p domain.Pipeline
	req := api.RerunRequest{JobDefinitionIDs: jobDefinitionIDs}
	err := c.do(ctx, http.MethodPost, "/stages/"+url.PathEscape(stageID)+"/rerun", req, &p)
	return p, err
}

// ListAgents returns every registered agent.
func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var agents []domain.Agent
	err := c.do(ctx, http.MethodGet, "/agents", nil, &agents)
	return agents, err
}

// GetWorkInfo polls for the agent's next job. ok is false when the agent
// has nothing to run.
func (c *Client) GetWorkInfo(ctx context.Context, agentID string) (work domain.WorkInfo, ok bool, err error) {
	status, err := c.send(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID)+"/work", nil, &work)
	if err != nil {
		return domain.WorkInfo{}, false, err
	}
	return work, status != http.StatusNoContent, nil
}

// ListPipelineDefinitions returns every pipeline definition.
func (c *Client) ListPipelineDefinitions(ctx context.Context) ([]domain.PipelineDefinition, error) {
	var defs []domain.PipelineDefinition
	err := c.do(ctx, http.MethodGet, "/definitions/pipelines", nil, &defs)
	return defs, err
}

func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	_, err := c.send(ctx, method, path, body, target)
	return err
}

// send issues the request and decodes the Result envelope into target.
func (c *Client) send(ctx context.Context, method, path string, body, target any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}

	var result api.Result[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return resp.StatusCode, fmt.Errorf("hawkd API error: %s", resp.Status)
	}
	if resp.StatusCode >= 400 || !result.Succeeded() {
		return resp.StatusCode, apiError(resp.StatusCode, result)
	}
	if target != nil && len(result.Entity) > 0 {
		if err := json.Unmarshal(result.Entity, target); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// apiError rebuilds a classified error from a failed envelope.
func apiError(status int, result api.Result[json.RawMessage]) error {
	kind := domain.ParseErrorKind(result.Kind)
	if kind == domain.KindUnknown {
		return fmt.Errorf("hawkd API error: %d %s", status, result.Message)
	}
	return &domain.Error{Kind: kind, Message: result.Message}
}
