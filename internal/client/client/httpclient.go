package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/client/config"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
)

type HTTPClient struct {
	baseURL   string
	token     string
	chunkSize int64
	http      *http.Client
}

func NewHTTPClient(cfg *config.Config) (*HTTPClient, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.ServerURL, "/"),
		token:     cfg.Token,
		chunkSize: cfg.ChunkSize,
		http:      &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// SetToken replaces the bearer token sent with every request.
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

// UploadFile sends the file at path in chunks of the configured size and
// returns the branch number the server assigned. The first failing chunk
// aborts the upload.
func (c *HTTPClient) UploadFile(ctx context.Context, ownerID int64, path string, published bool) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := fi.Size()
	name := filepath.Base(path)
	url := fmt.Sprintf("%s/api/files/upload/%d/%t", c.baseURL, ownerID, published)

	buf := make([]byte, c.chunkSize)
	var offset int64
	for {
		n, err := io.ReadFull(f, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read %s: %w", name, err)
		}
		last := offset+int64(n) >= size
		if n == 0 && !last {
			return 0, fmt.Errorf("read %s: file shrank to %d of %d bytes: %w", name, offset, size, io.ErrUnexpectedEOF)
		}

		var res models.ChunkResult
		if err := c.postChunk(ctx, url, name, offset, last, buf[:n], &res); err != nil {
			return 0, fmt.Errorf("chunk at offset %d: %w", offset, err)
		}
		offset += int64(n)

		if last {
			if !res.Registered {
				return 0, fmt.Errorf("%w: last chunk not registered", ErrServer)
			}
			return res.BranchNo, nil
		}
	}
}

func (c *HTTPClient) postChunk(ctx context.Context, url, name string, offset int64, last bool, data []byte, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := [][2]string{
		{"filename", name},
		{"offset", strconv.FormatInt(offset, 10)},
		{"isLastChunk", strconv.FormatBool(last)},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("blob", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

// Unlock releases the edit lock of ownerID.
func (c *HTTPClient) Unlock(ctx context.Context, ownerID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/files/remove/%d", c.baseURL, ownerID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// List returns the documents of ownerID, newest first.
func (c *HTTPClient) List(ctx context.Context, ownerID int64) ([]models.Document, error) {
	b, err := json.Marshal(map[string]int64{"ownerId": ownerID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/documents/select", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var docs []models.Document
	if err := c.do(req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// do sends req and decodes the envelope's data into out when out is set.
func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env models.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: status %d", statusError(resp.StatusCode), resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", statusError(resp.StatusCode), env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func statusError(code int) error {
	switch {
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code >= 500:
		return ErrServer
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}
