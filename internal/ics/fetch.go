package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "dayview/internal/log"
)

// Source is one calendar feed: a remote http(s) URL or a local file path.
type Source struct {
	ID  string
	URL string
	// Location applies to floating and date-only values. Nil means time.Local.
	Location *time.Location
}

func (s Source) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

func (s Source) isRemote() bool {
	return strings.HasPrefix(s.URL, "http://") || strings.HasPrefix(s.URL, "https://")
}

// Result is the payload of one fetched source.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool // stale body reused after 304 or a failed request
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher reads feeds. Remote feeds use conditional requests backed by a
// per-URL disk cache so an unreachable server still yields the last body.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher returns a Fetcher caching under cacheDir. An empty cacheDir
// disables the disk cache.
func NewFetcher(cacheDir string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// Fetch returns the payload of src.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}
	if !src.isRemote() {
		path := strings.TrimPrefix(src.URL, "file://")
		body, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("read %s: %w", path, err)
		}
		appLog.Debug("ics file read", "id", src.ID, "path", path, "bytes", len(body))
		return Result{Source: src, Body: body}, nil
	}
	return f.fetchRemote(ctx, src)
}

func (f *Fetcher) fetchRemote(ctx context.Context, src Source) (Result, error) {
	dir := f.cacheDirFor(src.URL)
	var meta cacheMeta
	var cached []byte
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return Result{}, err
		}
		meta, _ = readMeta(dir)
		cached, _ = os.ReadFile(filepath.Join(dir, "body.ics"))
	}
	stale := func(reason error) (Result, error) {
		if len(cached) == 0 {
			return Result{}, reason
		}
		appLog.Error("ics fetch failed, using cached body", reason, "id", src.ID, "url", redactURL(src.URL))
		return Result{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL))
	resp, err := f.client.Do(req)
	if err != nil {
		return stale(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return stale(err)
		}
		if dir != "" {
			m := cacheMeta{
				URL:          src.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			}
			if err := writeCache(dir, m, body); err != nil {
				appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
			}
		}
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return Result{Source: src, Body: body}, nil
	case http.StatusNotModified:
		if len(cached) == 0 {
			return Result{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Info("ics fetch not modified", "id", src.ID, "url", redactURL(src.URL))
		return Result{Source: src, Body: cached, FromCache: true}, nil
	default:
		return stale(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) cacheDirFor(u string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readMeta(dir string) (cacheMeta, error) {
	var m cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// writeCache stores the body before the metadata so meta never names a
// missing body.
func writeCache(dir string, m cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only the scheme and host; feed paths often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
