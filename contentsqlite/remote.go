// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package contentsqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mobiletoly/go-contentsync/contentsync"
)

// Remote is the content service as seen by the engine and the oracle
type Remote interface {
	FetchWords(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Word], error)
	FetchFlashcards(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Flashcard], error)
	FetchExams(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Exam], error)
	// CheckVersion asks the service to classify installedBuild for appVersion
	CheckVersion(ctx context.Context, installedBuild int64, appVersion string) (*contentsync.VersionCheckResponse, error)
	// LatestVersion returns the highest published version, nil if nothing is published
	LatestVersion(ctx context.Context) (*contentsync.DatabaseVersion, error)
}

// HTTPRemote talks to a content service over its REST API
type HTTPRemote struct {
	BaseURL string
	Token   func(context.Context) (string, error) // returns JWT; nil sends no Authorization header
	HTTP    *http.Client
}

// NewHTTPRemote creates a remote with http.DefaultClient
func NewHTTPRemote(baseURL string, tok func(context.Context) (string, error)) *HTTPRemote {
	return &HTTPRemote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   tok,
		HTTP:    http.DefaultClient,
	}
}

func (r *HTTPRemote) FetchWords(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Word], error) {
	var page contentsync.ContentPage[contentsync.Word]
	if err := r.get(ctx, contentPath(contentsync.EntityWords, after, limit), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *HTTPRemote) FetchFlashcards(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Flashcard], error) {
	var page contentsync.ContentPage[contentsync.Flashcard]
	if err := r.get(ctx, contentPath(contentsync.EntityFlashcards, after, limit), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *HTTPRemote) FetchExams(ctx context.Context, after string, limit int) (*contentsync.ContentPage[contentsync.Exam], error) {
	var page contentsync.ContentPage[contentsync.Exam]
	if err := r.get(ctx, contentPath(contentsync.EntityExams, after, limit), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *HTTPRemote) CheckVersion(ctx context.Context, installedBuild int64, appVersion string) (*contentsync.VersionCheckResponse, error) {
	q := url.Values{}
	q.Set("build", strconv.FormatInt(installedBuild, 10))
	q.Set("app_version", appVersion)

	var resp contentsync.VersionCheckResponse
	if err := r.get(ctx, "/content/version/check?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *HTTPRemote) LatestVersion(ctx context.Context) (*contentsync.DatabaseVersion, error) {
	var resp contentsync.VersionCheckResponse
	if err := r.get(ctx, "/content/version/latest", &resp); err != nil {
		return nil, err
	}
	return resp.Latest, nil
}

func contentPath(entity contentsync.EntityType, after string, limit int) string {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	p := "/content/" + string(entity)
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

func (r *HTTPRemote) get(ctx context.Context, path string, dst any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if r.Token != nil {
		token, err := r.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get JWT token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("Accept", "application/json")

	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: failed to send HTTP request: %w", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		remoteErr := &RemoteError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope contentsync.ErrorResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
			remoteErr.Code = envelope.Error
			remoteErr.Message = envelope.Message
		}
		return remoteErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
