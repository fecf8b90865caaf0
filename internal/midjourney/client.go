// Package midjourney speaks the task protocol of a midjourney-proxy style
// service: submit a prompt, receive a task id, poll the task until it
// resolves. Responses are decoded here, once, into SubmitCode and Status so
// nothing else inspects raw server fields.
package midjourney

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const defaultMaxBodyBytes = 1 << 20

type Config struct {
	BaseURL string
	// RateLimit caps outgoing calls per second across every caller sharing
	// the client. Zero disables limiting.
	RateLimit    float64
	MaxBodyBytes int64
}

// Client is safe for concurrent use by multiple orchestrators.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	maxBody int64
}

func New(cfg Config, client *http.Client) *Client {
	c := &Client{
		http:    lo.Ternary(client != nil, client, http.DefaultClient),
		base:    cfg.BaseURL,
		maxBody: lo.Ternary(cfg.MaxBodyBytes > 0, cfg.MaxBodyBytes, defaultMaxBodyBytes),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

type submitBody struct {
	Prompt      string   `json:"prompt"`
	Base64Array []string `json:"base64Array"`
	NotifyHook  string   `json:"notifyHook"`
	State       string   `json:"state"`
}

type submitResponse struct {
	Code        *int    `json:"code"`
	Result      *string `json:"result"`
	Description string  `json:"description"`
}

// Submit sends the composed prompt and classifies the reply. A task id is
// returned for every accepted code and never for Error.
func (c *Client) Submit(ctx context.Context, req GenerationRequest) (string, SubmitCode, error) {
	const op = "submit"
	prompt := req.Compose()
	logger := log.FromContextOrDiscard(ctx).WithGroup("midjourney").With("prompt", prompt)
	logger.Info("submitting imagine task")

	endpoint, err := url.JoinPath(lo.Ternary(req.BaseURL != "", req.BaseURL, c.base), "submit")
	if err != nil {
		return "", Error, &TransportError{Op: op, Err: err}
	}

	data, err := c.do(ctx, op, http.MethodPost, endpoint, submitBody{
		Prompt:      prompt,
		Base64Array: []string{},
		State:       req.State,
	})
	if err != nil {
		return "", Error, err
	}

	var resp submitResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", Error, &ProtocolError{Op: op, Reason: "malformed submit response", Err: err}
	}
	if resp.Code == nil {
		return "", Error, &ProtocolError{Op: op, Reason: "missing code"}
	}

	code := submitCode(*resp.Code)
	if !code.Accepted() {
		logger.Warn("task rejected", "code", *resp.Code, "description", resp.Description)
		return "", Error, nil
	}
	if resp.Result == nil || *resp.Result == "" {
		return "", Error, &ProtocolError{Op: op, Reason: fmt.Sprintf("code %d without task id", *resp.Code)}
	}

	logger.Info("task accepted", "task", *resp.Result, "code", code)
	return *resp.Result, code, nil
}

// PollOne fetches the status of one task. Unrecognised or malformed states
// decode to Unknown rather than an error.
func (c *Client) PollOne(ctx context.Context, id string) (Status, error) {
	return c.PollOneAt(ctx, "", id)
}

// PollOneAt polls a task on the server at base, which must be the one that
// issued the id. An empty base is the client's own.
func (c *Client) PollOneAt(ctx context.Context, base, id string) (Status, error) {
	const op = "fetch"
	endpoint, err := url.JoinPath(lo.Ternary(base != "", base, c.base), "task", id, "fetch")
	if err != nil {
		return Status{}, &TransportError{Op: op, Err: err}
	}

	data, err := c.do(ctx, op, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, err
	}

	_, status := decodeRecord(data)
	log.FromContextOrDiscard(ctx).WithGroup("midjourney").
		Debug("polled task", "task", id, "state", status.State)
	return status, nil
}

type listBody struct {
	IDs []string `json:"ids"`
}

type listResponse struct {
	Result *[]json.RawMessage `json:"result"`
}

// PollMany fetches the status of many tasks in one call. Each record is
// decoded on its own; a malformed record, or an id the server left out,
// yields Unknown for that id only.
func (c *Client) PollMany(ctx context.Context, ids []string) (map[string]Status, error) {
	const op = "list-by-condition"
	out := make(map[string]Status, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	endpoint, err := url.JoinPath(c.base, "task", "list-by-condition")
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	data, err := c.do(ctx, op, http.MethodPost, endpoint, listBody{IDs: ids})
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ProtocolError{Op: op, Reason: "malformed list response", Err: err}
	}
	if resp.Result == nil {
		return nil, &ProtocolError{Op: op, Reason: "missing result"}
	}

	for _, id := range ids {
		out[id] = Status{}
	}
	for _, raw := range *resp.Result {
		id, status := decodeRecord(raw)
		if _, requested := out[id]; requested {
			out[id] = status
		}
	}

	log.FromContextOrDiscard(ctx).WithGroup("midjourney").
		Debug("polled tasks", "requested", len(ids), "returned", len(*resp.Result))
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > c.maxBody {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("response body exceeded limit of %d bytes", c.maxBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if !json.Valid(data) {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: errNotJSON}
	}
	return data, nil
}
