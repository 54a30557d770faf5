// Package confluence implements the Confluence Cloud connector on top of
// the shared Atlassian plumbing. Search runs CQL against the content search
// endpoint, create publishes pages, and collections enumerate spaces.
package confluence

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
	ConnectorID = "confluence"

	searchPath = "/wiki/rest/api/content/search"
	createPath = "/wiki/rest/api/content"
	spacePath  = "/wiki/rest/api/space"
	probePath  = "/wiki/rest/api/user/current"

	defaultSpaceKey = "DEMO"
)

func New(cfg atlassian.Config) (*atlassian.Connector, error) {
	return atlassian.New(product{}, cfg)
}

type product struct{}

func (product) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:          ConnectorID,
		DisplayName: "Confluence",
		Capabilities: []core.Capability{
			core.CapabilityOAuth,
			core.CapabilityPAT,
			core.CapabilitySearch,
			core.CapabilityCreate,
		},
		RequiredScopes: []string{"read:confluence-content", "write:confluence-content"},
	}
}

func (product) ProbePath() string {
	return probePath
}

func (product) ParseIdentity(body []byte) string {
	var payload struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if strings.TrimSpace(payload.Email) != "" {
		return strings.TrimSpace(payload.Email)
	}
	return strings.TrimSpace(payload.DisplayName)
}

func (product) SearchRequest(baseURL string, req core.SearchRequest) (core.TransportRequest, error) {
	cql := fmt.Sprintf("type = page AND text ~ %q", req.Query)
	if space := strings.TrimSpace(req.Resource); space != "" {
		cql = fmt.Sprintf("space = %q AND %s", space, cql)
	}
	return core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + searchPath,
		Query: map[string]string{
			"cql":   cql,
			"start": strconv.Itoa((req.Page - 1) * req.PerPage),
			"limit": strconv.Itoa(req.PerPage),
		},
	}, nil
}

type contentPayload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

func (product) ParseSearchPage(baseURL string, body []byte, req core.SearchRequest) (core.SearchPage, error) {
	var payload struct {
		Results   []contentPayload `json:"results"`
		TotalSize int              `json:"totalSize"`
		Size      int              `json:"size"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.SearchPage{}, parseError(err, "search response")
	}

	total := payload.TotalSize
	if total == 0 {
		total = payload.Size
	}
	items := make([]core.NormalizedItem, 0, len(payload.Results))
	for _, content := range payload.Results {
		items = append(items, pageItem(baseURL, content))
	}
	return core.SearchPage{
		Items:   items,
		Page:    req.Page,
		PerPage: req.PerPage,
		Total:   total,
	}, nil
}

func (product) CreateRequest(baseURL string, req core.CreateRequest) (core.TransportRequest, error) {
	title, _ := req.Payload["title"].(string)
	if strings.TrimSpace(title) == "" {
		return core.TransportRequest{}, goerrors.New(
			"confluence: create payload requires a title",
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).WithTextCode(core.ConnectorErrorBadInput)
	}
	spaceKey, _ := req.Payload["space_key"].(string)
	if strings.TrimSpace(spaceKey) == "" {
		spaceKey = strings.TrimSpace(req.Resource)
	}
	if spaceKey == "" {
		spaceKey = defaultSpaceKey
	}
	content, _ := req.Payload["body"].(string)

	body, err := json.Marshal(map[string]any{
		"type":  "page",
		"title": strings.TrimSpace(title),
		"space": map[string]any{"key": spaceKey},
		"body": map[string]any{
			"storage": map[string]any{
				"value":          content,
				"representation": "storage",
			},
		},
	})
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
	var payload contentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.CreatedItem{}, parseError(err, "create response")
	}
	if strings.TrimSpace(payload.ID) == "" {
		return core.CreatedItem{}, goerrors.New(
			"confluence: create response missing content id",
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).WithTextCode(core.ConnectorErrorVendorUnavailable)
	}
	return core.CreatedItem{Item: pageItem(baseURL, payload)}, nil
}

func (product) CollectionsRequest(baseURL string) (core.TransportRequest, error) {
	return core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + spacePath,
	}, nil
}

func (product) ParseCollections(body []byte) ([]core.Collection, error) {
	var payload struct {
		Results []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseError(err, "space response")
	}
	collections := make([]core.Collection, 0, len(payload.Results))
	for _, space := range payload.Results {
		collections = append(collections, core.Collection{Key: space.Key, Name: space.Name})
	}
	return collections, nil
}

func pageItem(baseURL string, content contentPayload) core.NormalizedItem {
	pageURL := baseURL + "/wiki"
	if content.Links.WebUI != "" {
		pageURL += content.Links.WebUI
	} else {
		pageURL += "/pages/" + content.ID
	}
	return core.NormalizedItem{
		ID:       content.ID,
		Title:    content.Title,
		URL:      pageURL,
		Kind:     "page",
		Subtitle: content.Space.Key,
	}
}

func parseError(err error, what string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "confluence: decode "+what).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.ConnectorErrorVendorUnavailable)
}

var _ atlassian.Product = product{}
