package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"herdscreen/internal/api"
)

// BatchRequest is the multipart payload of POST /api/filter/batch. Filters
// must marshal to the FilterSpec JSON mapping.
type BatchRequest struct {
	SelectedFiles  []string
	Filters        any
	DisplayFields  []string
	MinMatchMonths int
}

// partWriter fills one multipart body.
type partWriter func(mw *multipart.Writer) error

// postMultipart streams the body produced by fill through a pipe so large
// uploads are never buffered whole.
func (c *Client) postMultipart(ctx context.Context, path string, fill partWriter) ([]byte, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := fill(mw)
		if closeErr := mw.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	data, err := c.do(req)
	pr.Close()
	return data, err
}

func writeFilePart(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("stream %s: %w", path, err)
	}
	return nil
}

// Upload sends one file as the "file" part of POST /api/upload.
func (c *Client) Upload(ctx context.Context, path string) (api.UploadResponse, error) {
	data, err := c.postMultipart(ctx, "/api/upload", func(mw *multipart.Writer) error {
		return writeFilePart(mw, "file", path)
	})
	if err != nil {
		return api.UploadResponse{}, err
	}
	var payload api.UploadResponse
	err = decode("/api/upload", data, &payload)
	return payload, err
}

// UploadBatch sends every path as a repeated "files" part of
// POST /api/upload/batch.
func (c *Client) UploadBatch(ctx context.Context, paths []string) (api.BatchUploadResponse, error) {
	data, err := c.postMultipart(ctx, "/api/upload/batch", func(mw *multipart.Writer) error {
		for _, path := range paths {
			if err := writeFilePart(mw, "files", path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return api.BatchUploadResponse{}, err
	}
	var payload api.BatchUploadResponse
	err = decode("/api/upload/batch", data, &payload)
	return payload, err
}

// FilterBatch submits the batch filter job and blocks until the server
// answers. Non-2xx replies come back as *StatusError.
func (c *Client) FilterBatch(ctx context.Context, req BatchRequest) (api.JobResult, error) {
	filters, err := json.Marshal(req.Filters)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}
	data, err := c.postMultipart(ctx, "/api/filter/batch", func(mw *multipart.Writer) error {
		for _, id := range req.SelectedFiles {
			if err := mw.WriteField("selected_files", id); err != nil {
				return err
			}
		}
		if err := mw.WriteField("filters", string(filters)); err != nil {
			return err
		}
		for _, field := range req.DisplayFields {
			if err := mw.WriteField("display_fields", field); err != nil {
				return err
			}
		}
		return mw.WriteField("min_match_months", strconv.Itoa(req.MinMatchMonths))
	})
	if err != nil {
		return nil, err
	}
	return api.DecodeJobResult(data)
}
