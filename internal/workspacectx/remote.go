package workspacectx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charlesng35/adboard/internal/services"
)

// Remote is the server side of the synchronizer: the membership list and the
// persisted profile pointer.
type Remote interface {
	Memberships(ctx context.Context) ([]services.WorkspaceMembership, error)
	SetCurrentWorkspace(ctx context.Context, workspaceID string) error
	CreateWorkspace(ctx context.Context, name string, description *string) (*services.WorkspaceMembership, error)
}

// ServiceRemote serves a single user from the in-process workspace service.
type ServiceRemote struct {
	Workspaces *services.WorkspaceService
	UserID     string
}

func (r *ServiceRemote) Memberships(ctx context.Context) ([]services.WorkspaceMembership, error) {
	return r.Workspaces.List(ctx, r.UserID)
}

func (r *ServiceRemote) SetCurrentWorkspace(ctx context.Context, workspaceID string) error {
	_, err := r.Workspaces.Switch(ctx, r.UserID, workspaceID)
	return err
}

func (r *ServiceRemote) CreateWorkspace(ctx context.Context, name string, description *string) (*services.WorkspaceMembership, error) {
	return r.Workspaces.Create(ctx, r.UserID, services.CreateWorkspaceInput{Name: name, Description: description})
}

// APIError is a failed API call decoded from the response envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// HTTPRemote talks to the adboard HTTP API with a bearer token.
type HTTPRemote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPRemote returns a remote for the API rooted at baseURL (for example
// http://localhost:8000). A nil client gets a default with a timeout.
func NewHTTPRemote(baseURL, token string, client *http.Client) (*HTTPRemote, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("workspacectx: api base url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPRemote{baseURL: baseURL, token: token, client: client}, nil
}

func (r *HTTPRemote) Memberships(ctx context.Context) ([]services.WorkspaceMembership, error) {
	var out []services.WorkspaceMembership
	if err := r.do(ctx, http.MethodGet, "/api/workspaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRemote) SetCurrentWorkspace(ctx context.Context, workspaceID string) error {
	body := map[string]string{"workspaceId": workspaceID}
	return r.do(ctx, http.MethodPost, "/api/workspaces/switch", body, nil)
}

func (r *HTTPRemote) CreateWorkspace(ctx context.Context, name string, description *string) (*services.WorkspaceMembership, error) {
	body := map[string]any{"name": name}
	if description != nil {
		body["description"] = *description
	}
	var out services.WorkspaceMembership
	if err := r.do(ctx, http.MethodPost, "/api/workspaces", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("workspacectx: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("workspacectx: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("workspacectx: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("workspacectx: decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("workspacectx: decode %s %s data: %w", method, path, err)
	}
	return nil
}
