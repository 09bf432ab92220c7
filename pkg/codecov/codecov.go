// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package codecov is a minimal client for a Codecov-compatible coverage
// reporting endpoint.  Uploads are a courtesy to an already-green build;
// callers should treat failures here as warnings, not as build failures.
package codecov

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to a coverage reporting service.
type Client struct {
	// BaseURL of the service, e.g. "https://codecov.io".
	BaseURL string
	// Token authorizes uploads for private repositories; may be empty
	// for public ones.
	Token      string
	HTTPClient *http.Client
	UserAgent  string
}

func (c *Client) fillDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/pybuild/pymatrix/pkg/codecov"
	}
}

type HTTPError struct {
	Status     string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s: %s", e.Status, e.Body)
}

// Report is one coverage report to upload.
type Report struct {
	// Commit being reported on (full hash).
	Commit string
	// Branch the commit is on; optional.
	Branch string
	// Flags distinguish this upload within the commit (the matrix cell
	// ID, typically).
	Flags []string
	// Content is the coverage file itself.
	Content []byte
}

// Upload sends a report, once; there is no retry.  The returned string is
// the service's response body (a results URL, for Codecov).
func (c Client) Upload(ctx context.Context, report Report) (string, error) {
	c.fillDefaults()
	if c.BaseURL == "" {
		return "", fmt.Errorf("codecov: no BaseURL configured")
	}
	if report.Commit == "" {
		return "", fmt.Errorf("codecov: report has no commit")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/upload/v2"
	query := url.Values{
		"commit": {report.Commit},
	}
	if report.Branch != "" {
		query.Set("branch", report.Branch)
	}
	if len(report.Flags) > 0 {
		query.Set("flags", strings.Join(report.Flags, ","))
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(),
		bytes.NewReader(report.Content))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", "text/plain")
	if c.Token != "" {
		req.Header.Set("X-Upload-Token", c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload coverage: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return "", err
	}
	if err := resp.Body.Close(); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload coverage: %w", &HTTPError{
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}
	return strings.TrimSpace(string(body)), nil
}
