// Package remotestore implements the document-store gateway over the
// QuickTalk HTTP API.
package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "github.com/sanusi-mayowa/QuickTalk-sub000/internal/errors"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/gateway"
)

// Client talks to the remote document store over HTTP. One document
// collection maps to one URL path segment chain; appends POST to the
// collection, upserts and patches PUT/PATCH the document path.
type Client struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// appendResponse is the store's reply to a collection append.
type appendResponse struct {
	ID string `json:"id"`
}

type queryResponse struct {
	Documents []gateway.Doc `json:"documents"`
}

type errorResponse struct {
	Error string `json:"error,omitempty"`
}

// NewClient creates a client against baseURL, authenticating every request
// with the bearer token.
func NewClient(baseURL, authToken string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		client:    &http.Client{Timeout: timeout},
	}
}

// Append adds a new document to a collection and returns its server id.
func (c *Client) Append(ctx context.Context, collectionPath string, doc gateway.Doc) (string, error) {
	var result appendResponse
	if err := c.do(ctx, http.MethodPost, collectionPath, doc, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Upsert writes a document at an exact path. With merge set, fields absent
// from doc are left untouched server-side.
func (c *Client) Upsert(ctx context.Context, docPath string, doc gateway.Doc, merge bool) error {
	path := docPath
	if merge {
		path += "?merge=true"
	}
	return c.do(ctx, http.MethodPut, path, doc, nil)
}

// Patch applies a partial update to a document. Only the provided fields
// change.
func (c *Client) Patch(ctx context.Context, docPath string, partial gateway.Doc) error {
	return c.do(ctx, http.MethodPatch, docPath, partial, nil)
}

// Get fetches a single document.
func (c *Client) Get(ctx context.Context, docPath string) (gateway.Doc, error) {
	var doc gateway.Doc
	if err := c.do(ctx, http.MethodGet, docPath, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Query lists a collection filtered by equality predicates.
func (c *Client) Query(ctx context.Context, collectionPath string, filters ...gateway.Filter) ([]gateway.Doc, error) {
	path := collectionPath
	if len(filters) > 0 {
		q := url.Values{}
		for _, f := range filters {
			q.Add("filter", fmt.Sprintf("%s==%v", f.Field, f.Value))
		}
		path += "?" + q.Encode()
	}

	var result queryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Documents, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperrors.NewRemoteError(method, path, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return gateway.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return apperrors.NewRemoteError(method, path, resp.StatusCode,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, er.Error))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
