package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentUploads bounds the parallel requests of a multi-file upload
const maxConcurrentUploads = 4

// Upload is the backend's record of a stored file
type Upload struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// UploadFile uploads a single file and returns its stored URL and metadata
func (c *Client) UploadFile(ctx context.Context, path string) (*Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/uploads", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	if env.Code != http.StatusOK {
		return nil, &BusinessError{Code: env.Code, Msg: env.Msg}
	}

	var up Upload
	if err := json.Unmarshal(env.Data, &up); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	return &up, nil
}

// UploadAll uploads files in parallel, one request per file, and joins the
// results. Failures never discard the files that did succeed: when some
// uploads fail the successes come back inside a PartialUploadError.
// Successes are returned in input order.
func (c *Client) UploadAll(ctx context.Context, paths []string) ([]Upload, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	succeeded := make(map[int]Upload)
	var failed []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			up, err := c.UploadFile(ctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warn().Err(err).Str("file", path).Msg("upload failed")
				failed = append(failed, path)
				return nil // keep uploading the rest
			}
			succeeded[i] = *up
			return nil
		})
	}
	// Workers report per-file failures through the failed slice, so an
	// errgroup error can only mean something went wrong outside them.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indexes := make([]int, 0, len(succeeded))
	for i := range succeeded {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	uploads := make([]Upload, 0, len(succeeded))
	for _, i := range indexes {
		uploads = append(uploads, succeeded[i])
	}

	if len(failed) > 0 {
		return uploads, &PartialUploadError{Succeeded: uploads, Failed: failed}
	}
	return uploads, nil
}
