// Package terra reads workflow submissions from the Terra (FireCloud) API.
package terra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultBaseURL is the production FireCloud orchestration API.
const DefaultBaseURL = "https://api.firecloud.org"

var scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Submission is one workflow submission in a workspace.
type Submission struct {
	SubmissionID            string         `json:"submissionId"`
	Status                  string         `json:"status"`
	SubmissionDate          string         `json:"submissionDate"`
	MethodConfigurationName string         `json:"methodConfigurationName"`
	SubmissionEntity        Entity         `json:"submissionEntity"`
	WorkflowStatuses        map[string]int `json:"workflowStatuses"`
}

// Entity references the data table row a submission ran on.
type Entity struct {
	EntityType string `json:"entityType"`
	EntityName string `json:"entityName"`
}

// Client calls the FireCloud API with an authorised http.Client.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a client. httpClient must carry Google credentials.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// NewHTTPClient returns an http.Client authorised with a service account key.
// With no key the application default credentials are used.
func NewHTTPClient(ctx context.Context, credentialsJSON []byte) (*http.Client, error) {
	var ts oauth2.TokenSource
	if len(credentialsJSON) == 0 {
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to find google credentials: %w", err)
		}
		ts = creds.TokenSource
	} else {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse google credentials: %w", err)
		}
		ts = creds.TokenSource
	}
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = 60 * time.Second
	return client, nil
}

// EntityTypes returns the data table names present in the workspace.
func (c *Client) EntityTypes(ctx context.Context, project, workspace string) (map[string]struct{}, error) {
	var types map[string]json.RawMessage
	if err := c.get(ctx, c.workspacePath(project, workspace, "entities"), &types); err != nil {
		return nil, fmt.Errorf("failed to list entity types for %s/%s: %w", project, workspace, err)
	}
	out := make(map[string]struct{}, len(types))
	for name := range types {
		out[name] = struct{}{}
	}
	return out, nil
}

// Submissions returns every submission in the workspace.
func (c *Client) Submissions(ctx context.Context, project, workspace string) ([]Submission, error) {
	var subs []Submission
	if err := c.get(ctx, c.workspacePath(project, workspace, "submissions"), &subs); err != nil {
		return nil, fmt.Errorf("failed to list submissions for %s/%s: %w", project, workspace, err)
	}
	return subs, nil
}

func (c *Client) workspacePath(project, workspace, resource string) string {
	return fmt.Sprintf("%s/api/workspaces/%s/%s/%s", c.baseURL, url.PathEscape(project), url.PathEscape(workspace), resource)
}

func (c *Client) get(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("http request returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
