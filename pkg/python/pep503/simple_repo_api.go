// Copyright (C) 2026  The pymatrix Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package pep503 implements a client for PEP 503 -- Simple Repository API.
//
// https://www.python.org/dev/peps/pep-0503/
package pep503

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/pybuild/pymatrix/pkg/htmlutil"
)

// Client talks to a simple-repository-API package index.  The zero value
// talks to PyPI.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
}

const PyPIBaseURL = "https://pypi.org/simple/"

func (c *Client) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = PyPIBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.UserAgent == "" {
		c.UserAgent = "github.com/pybuild/pymatrix/pkg/python/pep503"
	}
}

type HTTPError struct {
	Status     string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %s", e.Status)
}

// get fetches requestURL and returns the final (post-redirect) URL and the
// body.  If the URL carries a "#hashname=hexdigest" fragment (as file links
// in the simple API do), the body is verified against it.
func (c Client) get(ctx context.Context, requestURL string) (_ *url.URL, _ []byte, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("GET %q => %w", requestURL, err)
		}
	}()
	c.fillDefaults()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return nil, nil, err
	}
	if err := resp.Body.Close(); err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, &HTTPError{Status: resp.Status, StatusCode: resp.StatusCode}
	}

	if u, err := url.Parse(requestURL); err == nil && u.Fragment != "" {
		if keyvals, err := url.ParseQuery(u.Fragment); err == nil {
			for key, vals := range keyvals {
				var sum []byte
				for _, val := range vals {
					switch key {
					case "md5":
						_sum := md5.Sum(content)
						sum = _sum[:]
					case "sha1":
						_sum := sha1.Sum(content)
						sum = _sum[:]
					case "sha256":
						_sum := sha256.Sum256(content)
						sum = _sum[:]
					case "sha512":
						_sum := sha512.Sum512(content)
						sum = _sum[:]
					}
					if sum != nil && hex.EncodeToString(sum) != val {
						return nil, nil, fmt.Errorf("checksum mismatch: %s: expected=%s actual=%s",
							key, val, hex.EncodeToString(sum))
					}
				}
			}
		}
	}

	return resp.Request.URL, content, nil
}

// Link is an anchor in an index page; the simple API attaches metadata to
// links as data- attributes.
type Link struct {
	Text      string
	HRef      string
	DataAttrs map[string]string
}

func (c Client) getHTML5Index(ctx context.Context, requestURL string) ([]Link, error) {
	location, content, err := c.get(ctx, requestURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var links []Link
	if err := htmlutil.Walk(doc, func(node *html.Node) error {
		if node.Type != html.ElementNode || node.Data != "a" {
			return nil
		}
		link := Link{
			DataAttrs: make(map[string]string),
		}
		for _, attr := range node.Attr {
			switch {
			case attr.Namespace == "" && attr.Key == "href":
				href, err := location.Parse(attr.Val)
				if err != nil {
					return err
				}
				link.HRef = href.String()
			case attr.Namespace == "" && strings.HasPrefix(attr.Key, "data-"):
				link.DataAttrs[attr.Key] = attr.Val
			}
		}
		link.Text = htmlutil.InnerText(node)
		links = append(links, link)
		return nil
	}); err != nil {
		return nil, err
	}

	return links, nil
}

// FileLink is a link to one released file (wheel or sdist) of a project.
type FileLink struct {
	client Client
	Link
}

// NormalizeName normalizes a project name per PEP 503: runs of "-", "_",
// and "." are equivalent to a single "-", and comparison is
// case-insensitive.
func NormalizeName(str string) string {
	return strings.ToLower(regexp.MustCompile("[-_.]+").ReplaceAllLiteralString(str, "-"))
}

// ListProjectFiles lists the released files of the named project.
func (c Client) ListProjectFiles(ctx context.Context, project string) ([]FileLink, error) {
	// "the only valid characters in a name are the ASCII alphabet, ASCII
	// numbers, `.`, `-`, and `_`."
	for _, char := range project {
		if !(('a' <= char && char <= 'z') ||
			('A' <= char && char <= 'Z') ||
			('0' <= char && char <= '9') ||
			char == '.' ||
			char == '-' ||
			char == '_') {
			return nil, fmt.Errorf("illegal character in project name: %q: %s",
				project, strconv.QuoteRuneToASCII(char))
		}
	}

	c.fillDefaults()
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, NormalizeName(project)) + "/"
	rawLinks, err := c.getHTML5Index(ctx, u.String())
	if err != nil {
		return nil, err
	}
	links := make([]FileLink, 0, len(rawLinks))
	for _, link := range rawLinks {
		links = append(links, FileLink{
			client: c,
			Link:   link,
		})
	}
	return links, nil
}

// Get downloads the file, verifying any checksum fragment on the link URL.
func (l FileLink) Get(ctx context.Context) ([]byte, error) {
	_, content, err := l.client.get(ctx, l.HRef)
	return content, err
}
