// Package jira implements the Jira Cloud connector on top of the shared
// Atlassian plumbing. Search runs JQL against the issue search endpoint,
// create files new issues, and collections enumerate projects.
package jira

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/vendors/atlassian"
)

const (
	ConnectorID = "jira"

	searchPath  = "/rest/api/3/search"
	createPath  = "/rest/api/3/issue"
	projectPath = "/rest/api/3/project/search"
	probePath   = "/rest/api/3/myself"

	defaultProjectKey = "DEMO"
	defaultIssueType  = "Task"
)

func New(cfg atlassian.Config) (*atlassian.Connector, error) {
	return atlassian.New(product{}, cfg)
}

type product struct{}

func (product) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:          ConnectorID,
		DisplayName: "Jira",
		Capabilities: []core.Capability{
			core.CapabilityOAuth,
			core.CapabilityPAT,
			core.CapabilitySearch,
			core.CapabilityCreate,
		},
		RequiredScopes: []string{"read:jira-work", "write:jira-work"},
	}
}

func (product) ProbePath() string {
	return probePath
}

func (product) ParseIdentity(body []byte) string {
	var payload struct {
		EmailAddress string `json:"emailAddress"`
		DisplayName  string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if strings.TrimSpace(payload.EmailAddress) != "" {
		return strings.TrimSpace(payload.EmailAddress)
	}
	return strings.TrimSpace(payload.DisplayName)
}

func (product) SearchRequest(baseURL string, req core.SearchRequest) (core.TransportRequest, error) {
	jql := fmt.Sprintf("text ~ %q ORDER BY updated DESC", req.Query)
	if project := strings.TrimSpace(req.Resource); project != "" {
		jql = fmt.Sprintf("project = %q AND %s", project, jql)
	}
	return core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + searchPath,
		Query: map[string]string{
			"jql":        jql,
			"startAt":    strconv.Itoa((req.Page - 1) * req.PerPage),
			"maxResults": strconv.Itoa(req.PerPage),
			"fields":     "summary,status,issuetype",
		},
	}, nil
}

type issuePayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

func (product) ParseSearchPage(baseURL string, body []byte, req core.SearchRequest) (core.SearchPage, error) {
	var payload struct {
		Issues []issuePayload `json:"issues"`
		Total  int            `json:"total"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.SearchPage{}, parseError(err, "search response")
	}

	items := make([]core.NormalizedItem, 0, len(payload.Issues))
	for _, issue := range payload.Issues {
		items = append(items, issueItem(baseURL, issue))
	}
	return core.SearchPage{
		Items:   items,
		Page:    req.Page,
		PerPage: req.PerPage,
		Total:   payload.Total,
	}, nil
}

func (product) CreateRequest(baseURL string, req core.CreateRequest) (core.TransportRequest, error) {
	summary, _ := req.Payload["summary"].(string)
	if strings.TrimSpace(summary) == "" {
		return core.TransportRequest{}, goerrors.New(
			"jira: create payload requires a summary",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ConnectorErrorBadInput)
	}
	projectKey, _ := req.Payload["project_key"].(string)
	if strings.TrimSpace(projectKey) == "" {
		projectKey = strings.TrimSpace(req.Resource)
	}
	if projectKey == "" {
		projectKey = defaultProjectKey
	}
	issueType, _ := req.Payload["issue_type"].(string)
	if strings.TrimSpace(issueType) == "" {
		issueType = defaultIssueType
	}

	fields := map[string]any{
		"project":   map[string]any{"key": projectKey},
		"summary":   strings.TrimSpace(summary),
		"issuetype": map[string]any{"name": issueType},
	}
	if description, ok := req.Payload["description"].(string); ok && strings.TrimSpace(description) != "" {
		fields["description"] = atlassianDocument(description)
	}

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return core.TransportRequest{}, parseError(err, "create payload")
	}
	return core.TransportRequest{
		Method:  http.MethodPost,
		URL:     baseURL + createPath,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, nil
}

func (product) ParseCreatedItem(baseURL string, body []byte) (core.CreatedItem, error) {
	var payload issuePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.CreatedItem{}, parseError(err, "create response")
	}
	if strings.TrimSpace(payload.Key) == "" {
		return core.CreatedItem{}, goerrors.New(
			"jira: create response missing issue key",
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).WithTextCode(core.ConnectorErrorVendorUnavailable)
	}
	return core.CreatedItem{Item: issueItem(baseURL, payload)}, nil
}

func (product) CollectionsRequest(baseURL string) (core.TransportRequest, error) {
	return core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + projectPath,
	}, nil
}

func (product) ParseCollections(body []byte) ([]core.Collection, error) {
	var payload struct {
		Values []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"values"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseError(err, "project response")
	}
	collections := make([]core.Collection, 0, len(payload.Values))
	for _, project := range payload.Values {
		collections = append(collections, core.Collection{Key: project.Key, Name: project.Name})
	}
	return collections, nil
}

func issueItem(baseURL string, issue issuePayload) core.NormalizedItem {
	subtitle := issue.Fields.Status.Name
	if subtitle == "" {
		subtitle = issue.Fields.IssueType.Name
	}
	return core.NormalizedItem{
		ID:       issue.Key,
		Title:    issue.Fields.Summary,
		URL:      baseURL + "/browse/" + issue.Key,
		Kind:     "issue",
		Subtitle: subtitle,
	}
}

// atlassianDocument wraps plain text in the minimal ADF shape the v3 issue
// API accepts for description fields.
func atlassianDocument(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

func parseError(err error, what string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "jira: decode "+what).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ConnectorErrorVendorUnavailable)
}

var _ atlassian.Product = product{}
