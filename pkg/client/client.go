// Package client is a Go SDK for the toolkit-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

const userHeader = "X-User-ID"

// Client is a Go SDK for toolkit-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new toolkit-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: websocket.DefaultDialer,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-success response from the API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.Status, e.Code, e.Message)
}

// ResolvedAnswer is a stored answer; Answer holds the type-specific fields
type ResolvedAnswer struct {
	ToolkitType models.ToolkitType `json:"toolkit_type"`
	Answer      json.RawMessage    `json:"answer"`
}

// HistoryOptions pages through answer history
type HistoryOptions struct {
	Limit  int
	Offset int
}

// GraphData retrieves the graph of a toolkit for the range around date
func (c *Client) GraphData(ctx context.Context, userID, toolkitID string, date time.Time, g models.Granularity) (*models.GraphData, error) {
	q := url.Values{}
	q.Set("range", string(g))
	if !date.IsZero() {
		q.Set("date", date.Format(time.DateOnly))
	}

	var data models.GraphData
	if err := c.call(ctx, http.MethodGet, "/api/v1/toolkits/"+url.PathEscape(toolkitID)+"/graph?"+q.Encode(), userID, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SaveAnswer submits one toolkit session answer
func (c *Client) SaveAnswer(ctx context.Context, userID, toolkitID string, req models.SaveAnswerRequest) (*models.SaveAnswerResponse, error) {
	var resp models.SaveAnswerResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/toolkits/"+url.PathEscape(toolkitID)+"/answers", userID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAnswer retrieves the answer of one session
func (c *Client) GetAnswer(ctx context.Context, userID, toolkitID, sessionID string) (*ResolvedAnswer, error) {
	var answer ResolvedAnswer
	path := fmt.Sprintf("/api/v1/toolkits/%s/answers/%s", url.PathEscape(toolkitID), url.PathEscape(sessionID))
	if err := c.call(ctx, http.MethodGet, path, userID, nil, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// AnswerHistory lists a user's answers of a toolkit, newest first
func (c *Client) AnswerHistory(ctx context.Context, userID, toolkitID string, opts HistoryOptions) ([]json.RawMessage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/toolkits/" + url.PathEscape(toolkitID) + "/answers"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Answers []json.RawMessage `json:"answers"`
		Total   int               `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, path, userID, nil, &result); err != nil {
		return nil, err
	}
	return result.Answers, nil
}

// UpdateAudioProgress records the consumed duration of an audio file in a session
func (c *Client) UpdateAudioProgress(ctx context.Context, userID, scheduleID, sessionID, audioFileID string, consumed int) (*models.PlayedAudio, error) {
	path := fmt.Sprintf("/api/v1/schedules/%s/sessions/%s/audio/%s",
		url.PathEscape(scheduleID), url.PathEscape(sessionID), url.PathEscape(audioFileID))

	var played models.PlayedAudio
	if err := c.call(ctx, http.MethodPut, path, userID, models.AudioProgressRequest{ConsumedDuration: consumed}, &played); err != nil {
		return nil, err
	}
	return &played, nil
}

// ScheduleProgress reports schedule completion between two dates inclusive
func (c *Client) ScheduleProgress(ctx context.Context, userID, scheduleID string, start, end time.Time) (*models.ScheduleProgress, error) {
	q := url.Values{}
	q.Set("start", start.Format(time.DateOnly))
	q.Set("end", end.Format(time.DateOnly))

	var progress models.ScheduleProgress
	if err := c.call(ctx, http.MethodGet, "/api/v1/schedules/"+url.PathEscape(scheduleID)+"/progress?"+q.Encode(), userID, nil, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// UserGoalLevels returns the user's progress in each goal. limit <= 0 returns all goals.
func (c *Client) UserGoalLevels(ctx context.Context, userID string, limit int) ([]models.GoalProgress, error) {
	path := "/api/v1/goal-levels"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var result struct {
		Goals []models.GoalProgress `json:"goals"`
		Total int                   `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, path, userID, nil, &result); err != nil {
		return nil, err
	}
	return result.Goals, nil
}

// CheckGoalLevel asks the engine to unlock the next level of the toolkit's goal
func (c *Client) CheckGoalLevel(ctx context.Context, userID, toolkitID string) (*models.CheckGoalLevelResult, error) {
	var result models.CheckGoalLevelResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/toolkits/"+url.PathEscape(toolkitID)+"/goal-level/check", userID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StreamUnlocks calls onEvent for each of the user's level unlocks until ctx
// is cancelled or the server closes the stream
func (c *Client) StreamUnlocks(ctx context.Context, userID string, onEvent func(models.LevelUnlockedEvent)) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/goal-levels/stream"

	header := http.Header{}
	header.Set(userHeader, userID)

	conn, _, err := c.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("failed to open unlock stream: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var msg struct {
			Type  string                     `json:"type"`
			Event *models.LevelUnlockedEvent `json:"event"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("unlock stream failed: %w", err)
		}
		if msg.Event != nil {
			onEvent(*msg.Event)
		}
	}
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", "", nil)
	return err
}

// call performs a request and decodes the data of the response envelope into out
func (c *Client) call(ctx context.Context, method, path, userID string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	resp, err := c.doRequest(ctx, method, path, userID, body)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path, userID string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		} else {
			apiErr.Message = string(respBody)
		}
		return nil, apiErr
	}

	return respBody, nil
}
