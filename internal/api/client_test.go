package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		Endpoints{ServiceURL: server.URL + "/", GenerateURL: server.URL},
		WithHTTPClient(server.Client()),
		WithLogger(zaptest.NewLogger(t)),
		WithTimeout(5*time.Second),
	)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, err := uuid.Parse(r.Header.Get(HeaderRequestID))
		assert.NoError(t, err, "request id should be a uuid")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":["support-bot","legal-qa"]}`))
	}))
	defer server.Close()

	models, err := newTestClient(t, server).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"support-bot", "legal-qa"}, models)
}

func TestListModels_EmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	models, err := newTestClient(t, server).ListModels(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, models)
	assert.Empty(t, models)
}

func TestListModels_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).ListModels(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
}

func TestListModels_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).ListModels(context.Background())
	require.Error(t, err)
}

func TestListModels_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, server)
	server.Close()

	_, err := client.ListModels(context.Background())
	require.Error(t, err)
}

type receivedUpload struct {
	modelName     string
	contentLength int64
	files         map[string]map[string]string // 字段 -> 文件名 -> 内容
}

// partFileName 读取原始的 filename 参数；Part.FileName 只保留最后一段
func partFileName(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}

func uploadServer(t *testing.T, got *receivedUpload, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/upload", r.URL.Path)
		got.contentLength = r.ContentLength

		mr, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		got.files = map[string]map[string]string{}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(p)
			name := partFileName(p)
			if name == "" {
				if p.FormName() == FieldModelName {
					got.modelName = string(data)
				}
				continue
			}
			if got.files[p.FormName()] == nil {
				got.files[p.FormName()] = map[string]string{}
			}
			got.files[p.FormName()][name] = string(data)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uploaded_files":{"ragFiles":[],"fineTuneFiles":[]},"RAG Pipeline ready":true}`)
	}))
}

func entry(path string) utils.FileEntry {
	return utils.FileEntry{Path: path, Name: filepath.Base(path)}
}

func TestUpload_SeparatesFieldGroups(t *testing.T) {
	tmpDir := t.TempDir()
	paths := map[string]string{
		"handbook.md": "rag one",
		"faq.txt":     "rag two",
		"train.jsonl": `{"prompt":"p","completion":"c"}`,
	}
	for name, content := range paths {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644))
	}

	var got receivedUpload
	var calls int32
	server := uploadServer(t, &got, &calls)
	defer server.Close()

	result, err := newTestClient(t, server).Upload(context.Background(), UploadRequest{
		ModelName:     "support-bot",
		RAGFiles:      []utils.FileEntry{entry(filepath.Join(tmpDir, "handbook.md")), entry(filepath.Join(tmpDir, "faq.txt"))},
		FineTuneFiles: []utils.FileEntry{entry(filepath.Join(tmpDir, "train.jsonl"))},
	})
	require.NoError(t, err)
	assert.Contains(t, result.String(), "RAG Pipeline ready")

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, "support-bot", got.modelName)
	assert.Equal(t, map[string]string{"handbook.md": "rag one", "faq.txt": "rag two"}, got.files[FieldRAGFiles])
	assert.Equal(t, map[string]string{"train.jsonl": `{"prompt":"p","completion":"c"}`}, got.files[FieldFineTuneFiles])

	var fields []string
	for field := range got.files {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	assert.Equal(t, []string{FieldFineTuneFiles, FieldRAGFiles}, fields)
}

func TestUpload_FolderKeepsRelativeNames(t *testing.T) {
	docs := filepath.Join(t.TempDir(), "docs")
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "a"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(docs, "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a", "README.md"), []byte("first"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b", "README.md"), []byte("second"), 0644))

	files, err := utils.ExpandPaths([]string{docs})
	require.NoError(t, err)

	var got receivedUpload
	var calls int32
	server := uploadServer(t, &got, &calls)
	defer server.Close()

	_, err = newTestClient(t, server).Upload(context.Background(), UploadRequest{
		ModelName: "m",
		RAGFiles:  files,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"docs/a/README.md": "first",
		"docs/b/README.md": "second",
	}, got.files[FieldRAGFiles])
}

func TestUpload_StreamsBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")
	content := strings.Repeat(`{"prompt":"p","completion":"c"}`+"\n", 4096)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var got receivedUpload
	var calls int32
	server := uploadServer(t, &got, &calls)
	defer server.Close()

	_, err := newTestClient(t, server).Upload(context.Background(), UploadRequest{
		ModelName:     "m",
		FineTuneFiles: []utils.FileEntry{entry(path)},
	})
	require.NoError(t, err)

	// 长度未知，说明请求体没有预先整体构建
	assert.Equal(t, int64(-1), got.contentLength)
	assert.Equal(t, content, got.files[FieldFineTuneFiles]["train.jsonl"])
}

func TestUpload_OnlyOneGroup(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "train.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	var got receivedUpload
	var calls int32
	server := uploadServer(t, &got, &calls)
	defer server.Close()

	_, err := newTestClient(t, server).Upload(context.Background(), UploadRequest{
		ModelName:     "m",
		FineTuneFiles: []utils.FileEntry{entry(path)},
	})
	require.NoError(t, err)
	assert.NotContains(t, got.files, FieldRAGFiles)
	assert.Len(t, got.files[FieldFineTuneFiles], 1)
}

func TestUpload_MissingFileSendsNothing(t *testing.T) {
	tmpDir := t.TempDir()
	present := filepath.Join(tmpDir, "present.md")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))

	var got receivedUpload
	var calls int32
	server := uploadServer(t, &got, &calls)
	defer server.Close()

	_, err := newTestClient(t, server).Upload(context.Background(), UploadRequest{
		ModelName: "m",
		RAGFiles:  []utils.FileEntry{entry(present), entry(filepath.Join(tmpDir, "missing.pdf"))},
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestUpload_RequiresModel(t *testing.T) {
	client := NewClient(Endpoints{ServiceURL: "http://127.0.0.1:1"})
	_, err := client.Upload(context.Background(), UploadRequest{})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestUpload_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"No files part in the request"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Upload(context.Background(), UploadRequest{ModelName: "m"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rag", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req QueryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, QueryRequest{ModelName: "support-bot", Query: "refund policy?"}, req)

		w.Write([]byte(`{"results":"30 days, no questions asked."}`))
	}))
	defer server.Close()

	results, err := newTestClient(t, server).Query(context.Background(), "support-bot", "refund policy?")
	require.NoError(t, err)
	assert.Equal(t, "30 days, no questions asked.", results)
}

func TestQuery_NonStringResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"answer":"42"}}`))
	}))
	defer server.Close()

	results, err := newTestClient(t, server).Query(context.Background(), "m", "q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"42"}`, results)
}

func TestQuery_GuardSendsNothing(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()
	client := newTestClient(t, server)

	_, err := client.Query(context.Background(), "", "hello")
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = client.Query(context.Background(), "m", "")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestQuery_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"index not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Query(context.Background(), "m", "q")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "index not found")
}

// streamingServer 分片写出 NDJSON，故意把行切在分片中间
func streamingServer(t *testing.T, parts []string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "why is the sky blue", req.Prompt)

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, part := range parts {
			w.Write([]byte(part))
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
}

func TestGenerate(t *testing.T) {
	server := streamingServer(t, []string{
		`{"response":"ab"}` + "\n",
		`{"response":"c`,
		`d"}` + "\n" + `{"done":true}` + "\n",
	})
	defer server.Close()

	var seen []string
	text, err := newTestClient(t, server).Generate(context.Background(), "llama3", "why is the sky blue", func(c GenerateChunk) {
		seen = append(seen, c.Response)
	})
	require.NoError(t, err)
	assert.Equal(t, "abcd", text)
	assert.Equal(t, []string{"ab", "cd", ""}, seen)
}

func TestGenerateWithChannel(t *testing.T) {
	server := streamingServer(t, []string{
		`{"response":"Rayleigh "}` + "\n",
		`{"response":"scattering"}` + "\n",
		`{"done":true}` + "\n",
	})
	defer server.Close()

	chunkCh, errCh := newTestClient(t, server).GenerateWithChannel(context.Background(), "llama3", "why is the sky blue")

	acc := NewStreamAccumulator()
	for chunk := range chunkCh {
		acc.Add(chunk)
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, "Rayleigh scattering", acc.String())
	assert.True(t, acc.Done())
}

func TestGenerate_Cancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"partial"}` + "\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	text, err := newTestClient(t, server).Generate(ctx, "llama3", "p", func(c GenerateChunk) {
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial", text)
}

func TestGenerate_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).Generate(context.Background(), "llama3", "p", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
