package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storepos/pkg/models"
)

// RemoteClient implements Client over the licence service's JSON API.
type RemoteClient struct {
	cfg  *Config
	http *http.Client
}

func NewRemoteClient(cfg *Config) *RemoteClient {
	return &RemoteClient{cfg: cfg, http: &http.Client{Timeout: cfg.EffectiveTimeout()}}
}

var _ Client = (*RemoteClient)(nil)

func (c *RemoteClient) QueryState(ctx context.Context) (LicenseState, error) {
	var body models.LicenseState
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/license/state", nil, &body); err != nil {
		return LicenseState{}, err
	}
	return stateFromWire(body), nil
}

func (c *RemoteClient) Reconcile(ctx context.Context) error {
	var ack models.Ack
	_, err := c.do(ctx, http.MethodPost, "/api/v1/license/reconcile", nil, &ack)
	return err
}

// Activate posts the code. Rejections come back as 200 (or 429 when
// throttled) with success=false and are returned without error.
func (c *RemoteClient) Activate(ctx context.Context, code string) (ActivationResponse, error) {
	var body models.ActivationResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/license/activate", models.ActivationRequest{Code: code}, &body)
	if err != nil {
		var se ServiceError
		if status != http.StatusTooManyRequests || !errors.As(err, &se) {
			return ActivationResponse{}, err
		}
		if jerr := json.Unmarshal([]byte(se.Body), &body); jerr != nil || body.Message == "" {
			return ActivationResponse{}, err
		}
	}
	resp := ActivationResponse{Success: body.Success, Message: body.Message, ReadOnly: body.ReadOnly}
	if body.State != nil {
		st := stateFromWire(*body.State)
		resp.State = &st
	}
	return resp, nil
}

func (c *RemoteClient) QueryFirstRun(ctx context.Context) (bool, error) {
	var body models.FirstRunResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/license/first-run", nil, &body); err != nil {
		return false, err
	}
	return body.FirstRun, nil
}

func (c *RemoteClient) MarkFirstRunSeen(ctx context.Context) error {
	var ack models.Ack
	_, err := c.do(ctx, http.MethodPost, "/api/v1/license/first-run/seen", nil, &ack)
	return err
}

// do performs one JSON round-trip and returns the HTTP status when a
// response was received.
func (c *RemoteClient) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	url := strings.TrimRight(c.cfg.ServiceURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, NetworkError{Err: err}
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, NetworkError{Err: err}
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, ServiceError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, ServiceError{StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return resp.StatusCode, nil
}
