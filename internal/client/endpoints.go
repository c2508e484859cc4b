package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// The endpoint operations below are thin typed wrappers over request: each
// fixes method, path template and payload shape. They propagate
// UpstreamError unchanged and perform no additional retry.

// GetTask fetches the current state of a single task or process entity.
func (c *Client) GetTask(ctx context.Context, id string) (map[string]any, error) {
	body, err := c.request(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), requestOptions{})
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// GetTaskVariables fetches the variables attached to a task.
func (c *Client) GetTaskVariables(ctx context.Context, id string) (map[string]any, error) {
	body, err := c.request(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id)+"/variables", requestOptions{})
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// CompleteTask completes a task, optionally submitting variables.
func (c *Client) CompleteTask(ctx context.Context, id string, variables map[string]string) error {
	opt := requestOptions{}
	if len(variables) > 0 {
		opt.json = variables
	}
	_, err := c.request(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/complete", opt)
	return err
}

// AbortTask aborts a task with an optional reason.
func (c *Client) AbortTask(ctx context.Context, id, reason string) error {
	opt := requestOptions{}
	if reason != "" {
		opt.json = map[string]string{"reason": reason}
	}
	_, err := c.request(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/abort", opt)
	return err
}

// StartTask starts a task.
func (c *Client) StartTask(ctx context.Context, id string) error {
	_, err := c.request(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/start", requestOptions{})
	return err
}

// StopTask stops a task.
func (c *Client) StopTask(ctx context.Context, id string) error {
	_, err := c.request(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/stop", requestOptions{})
	return err
}

// ReassignTask changes a task's assignee.
func (c *Client) ReassignTask(ctx context.Context, id, assignee string) error {
	opt := requestOptions{json: map[string]string{"assignee": assignee}}
	_, err := c.request(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id)+"/assignee", opt)
	return err
}

// InstancesQuery selects a page of definition instances. Zero values fall
// back to the upstream defaults used by the monitor: first page, 10 rows,
// sorted by start date descending so the most recent instance comes first.
type InstancesQuery struct {
	Page          int
	Size          int
	Sort          string
	SortDirection string
}

// InstancesPage is one page of a definition's instance collection.
type InstancesPage struct {
	Content       []map[string]any `json:"content"`
	TotalElements int              `json:"totalElements"`
}

// GetDefinitionInstances lists instances of a process definition.
func (c *Client) GetDefinitionInstances(ctx context.Context, definitionID string, q InstancesQuery) (InstancesPage, error) {
	if q.Size <= 0 {
		q.Size = 10
	}
	if q.Sort == "" {
		q.Sort = "START_DATE"
	}
	if q.SortDirection == "" {
		q.SortDirection = "DESC"
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("size", strconv.Itoa(q.Size))
	query.Set("sort", q.Sort)
	query.Set("sortDirection", q.SortDirection)

	var page InstancesPage
	body, err := c.request(ctx, http.MethodGet, "/v1/definitions/"+url.PathEscape(definitionID)+"/instances", requestOptions{query: query})
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, &UpstreamError{Status: http.StatusOK, Body: "malformed instances payload: " + err.Error()}
	}
	return page, nil
}

// StartProcess starts a business-process instance.
func (c *Client) StartProcess(ctx context.Context, id string) error {
	_, err := c.request(ctx, http.MethodPost, "/v1/bp-instances/"+url.PathEscape(id)+"/start", requestOptions{})
	return err
}

// StopProcess stops a business-process instance with an optional reason.
func (c *Client) StopProcess(ctx context.Context, id, reason string) error {
	opt := requestOptions{}
	if reason != "" {
		opt.json = map[string]string{"reason": reason}
	}
	_, err := c.request(ctx, http.MethodPost, "/v1/bp-instances/"+url.PathEscape(id)+"/stop", opt)
	return err
}

func decodeObject(body []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &UpstreamError{Status: http.StatusOK, Body: "malformed payload: " + err.Error()}
	}
	return m, nil
}
