// Package docs fetches user planning documents referenced by context link
// memos.
package docs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxDocBytes = 1 << 20

// Fetcher retrieves a planning document over HTTP. Links arrive from memo
// payloads, so every fetch is bounded in time and size.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("empty document link")
	}
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		return "", fmt.Errorf("unsupported document link %q", link)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL(link), nil)
	if err != nil {
		return "", err
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("document fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// exportURL rewrites a Google Docs edit link to its plain-text export form.
// Other links pass through untouched.
func exportURL(link string) string {
	const docsPrefix = "https://docs.google.com/document/d/"
	if !strings.HasPrefix(link, docsPrefix) {
		return link
	}
	rest := strings.TrimPrefix(link, docsPrefix)
	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return link
	}
	return docsPrefix + id + "/export?format=txt"
}
