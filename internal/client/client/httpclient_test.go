package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docsync/internal/client/config"
	"github.com/dmitrijs2005/docsync/internal/client/models"
)

type receivedChunk struct {
	owner    string
	flag     string
	filename string
	offset   int64
	last     bool
	data     []byte
	auth     string
}

// chunkServer reassembles uploads the way the server does and answers with
// a branch number on the last chunk.
type chunkServer struct {
	mu     sync.Mutex
	chunks []receivedChunk
	file   []byte
}

func (s *chunkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	blob, _, err := r.FormFile("blob")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, _ := io.ReadAll(blob)
	offset, _ := strconv.ParseInt(r.FormValue("offset"), 10, 64)

	c := receivedChunk{
		owner:    filepath.Base(filepath.Dir(r.URL.Path)),
		flag:     filepath.Base(r.URL.Path),
		filename: r.FormValue("filename"),
		offset:   offset,
		last:     r.FormValue("isLastChunk") == "true",
		data:     data,
		auth:     r.Header.Get("Authorization"),
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	if offset == 0 {
		s.file = nil
	}
	if need := offset + int64(len(data)); int64(len(s.file)) < need {
		s.file = append(s.file, make([]byte, need-int64(len(s.file)))...)
	}
	copy(s.file[offset:], data)
	s.mu.Unlock()

	res := models.ChunkResult{Written: int64(len(data))}
	if c.last {
		res.Registered = true
		res.BranchNo = 99
	}
	writeEnvelope(w, http.StatusOK, true, "", res)
}

func writeEnvelope(w http.ResponseWriter, status int, ok bool, msg string, data any) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope{OK: ok, Message: msg, Data: raw})
}

func newTestClient(t *testing.T, url string, chunkSize int64) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(&config.Config{ServerURL: url + "/", ChunkSize: chunkSize, Token: "tok", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUploadFile_SplitsIntoChunks(t *testing.T) {
	srv := &chunkServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	payload := bytes.Repeat([]byte("0123456789"), 250) // 2500 bytes
	path := writeFile(t, "report.pdf", payload)

	branchNo, err := newTestClient(t, ts.URL, 1000).UploadFile(context.Background(), 12, path, true)
	require.NoError(t, err)
	assert.Equal(t, int64(99), branchNo)

	require.Len(t, srv.chunks, 3)
	for i, c := range srv.chunks {
		assert.Equal(t, int64(i*1000), c.offset)
		assert.Equal(t, i == 2, c.last)
		assert.Equal(t, "report.pdf", c.filename)
		assert.Equal(t, "12", c.owner)
		assert.Equal(t, "true", c.flag)
		assert.Equal(t, "Bearer tok", c.auth)
	}
	assert.Len(t, srv.chunks[2].data, 500)
	assert.Equal(t, payload, srv.file)
}

func TestUploadFile_ExactMultipleAndEmpty(t *testing.T) {
	srv := &chunkServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	c := newTestClient(t, ts.URL, 1000)

	_, err := c.UploadFile(context.Background(), 1, writeFile(t, "a.bin", make([]byte, 2000)), false)
	require.NoError(t, err)
	require.Len(t, srv.chunks, 2, "no trailing empty chunk")
	assert.True(t, srv.chunks[1].last)

	srv.chunks = nil
	_, err = c.UploadFile(context.Background(), 1, writeFile(t, "empty.bin", nil), false)
	require.NoError(t, err)
	require.Len(t, srv.chunks, 1)
	assert.True(t, srv.chunks[0].last)
	assert.Empty(t, srv.chunks[0].data)
}

func TestUploadFile_StopsAtFirstFailure(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeEnvelope(w, http.StatusNotFound, false, "owner 5: not found", nil)
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts.URL, 10).UploadFile(context.Background(), 5, writeFile(t, "a.txt", make([]byte, 35)), false)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "owner 5: not found")
	assert.Equal(t, 1, calls)
}

func TestUploadFile_FileShrinksDuringUpload(t *testing.T) {
	path := writeFile(t, "a.txt", make([]byte, 35))
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			assert.NoError(t, os.Truncate(path, 10))
		}
		writeEnvelope(w, http.StatusOK, true, "", models.ChunkResult{Written: 10})
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts.URL, 10).UploadFile(context.Background(), 5, path, false)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, calls, "no empty chunks after the file shrank")
}

func TestUploadFile_MissingLocalFile(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:1", 10).UploadFile(context.Background(), 1, filepath.Join(t.TempDir(), "nope"), false)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnlock(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeEnvelope(w, http.StatusOK, true, "lock removed", nil)
	}))
	defer ts.Close()

	require.NoError(t, newTestClient(t, ts.URL, 10).Unlock(context.Background(), 44))
	assert.Equal(t, "/api/files/remove/44", gotPath)
}

func TestList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]int64
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeEnvelope(w, http.StatusOK, true, "", []models.Document{
			{DocumentID: body["ownerId"], BranchNo: 2, FileName: "b.pdf"},
			{DocumentID: body["ownerId"], BranchNo: 1, FileName: "a.pdf"},
		})
	}))
	defer ts.Close()

	docs, err := newTestClient(t, ts.URL, 10).List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, int64(3), docs[0].DocumentID)
	assert.Equal(t, "b.pdf", docs[0].FileName)
}

func TestStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:          ErrBadRequest,
		http.StatusUnauthorized:        ErrUnauthorized,
		http.StatusConflict:            ErrConflict,
		http.StatusInternalServerError: ErrServer,
	}
	for status, want := range cases {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, status, false, "nope", nil)
		}))
		err := newTestClient(t, ts.URL, 10).Unlock(context.Background(), 1)
		ts.Close()
		require.ErrorIs(t, err, want, "status %d", status)
	}
}

func TestUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	err := newTestClient(t, url, 10).Unlock(context.Background(), 1)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestNewHTTPClient_RejectsChunkSize(t *testing.T) {
	_, err := NewHTTPClient(&config.Config{ServerURL: "http://x", ChunkSize: 0})
	require.Error(t, err)
}
