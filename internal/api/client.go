package api

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
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"

	defaultTimeout = 60 * time.Second
)

var (
	ErrNoModel    = errors.New("未选择模型")
	ErrEmptyQuery = errors.New("查询内容为空")
)

// APIError 表示 API 请求错误，包含状态码和错误信息
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API请求失败 (状态码: %d): %s", e.StatusCode, e.Message)
}

// 全局共享的HTTP客户端，实现连接池化
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

// getSharedHTTPClient 返回共享的HTTP客户端实例。
// 不设置整体超时：流式响应可能持续很久，非流式请求的超时由 context 控制。
func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          20,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		}
	})
	return sharedHTTPClient
}

type Client struct {
	serviceURL  string
	generateURL string
	timeout     time.Duration
	client      utils.Doer
	logger      *zap.Logger
}

type Option func(*Client)

// WithHTTPClient 替换底层的 HTTP 客户端
func WithHTTPClient(d utils.Doer) Option {
	return func(c *Client) {
		c.client = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout 设置非流式请求的超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient 创建模型定制服务的客户端
func NewClient(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		serviceURL:  strings.TrimRight(endpoints.ServiceURL, "/"),
		generateURL: strings.TrimRight(endpoints.GenerateURL, "/"),
		timeout:     defaultTimeout,
		client:      getSharedHTTPClient(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListModels 获取服务端的模型列表
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.serviceURL+"/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if out.Models == nil {
		out.Models = []string{}
	}
	return out.Models, nil
}

// Upload 以 multipart 形式上传 RAG 和微调文件。
// 所有文件在发送前打开，任何一个文件打不开都不会发出请求；
// 请求体通过管道边读边发，不会把文件整体读入内存。
func (c *Client) Upload(ctx context.Context, upload UploadRequest) (UploadResult, error) {
	if strings.TrimSpace(upload.ModelName) == "" {
		return UploadResult{}, ErrNoModel
	}

	parts, err := openUploadParts(upload)
	if err != nil {
		return UploadResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := c.newRequest(ctx, http.MethodPost, c.serviceURL+"/upload", pr)
	if err != nil {
		closeUploadParts(parts)
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("uploading files",
		zap.String("model", upload.ModelName),
		zap.Int("rag_files", len(upload.RAGFiles)),
		zap.Int("finetune_files", len(upload.FineTuneFiles)))

	go writeUploadBody(pw, mw, upload.ModelName, parts)
	// 返回后写入方不再阻塞
	defer pr.Close()

	resp, err := c.do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("读取响应失败: %w", err)
	}
	if !json.Valid(raw) {
		return UploadResult{}, fmt.Errorf("解析响应失败: 非法的 JSON")
	}
	return UploadResult{Raw: raw}, nil
}

type uploadPart struct {
	field string
	name  string
	file  *os.File
}

func openUploadParts(upload UploadRequest) ([]uploadPart, error) {
	var parts []uploadPart
	add := func(field string, files []utils.FileEntry) error {
		for _, entry := range files {
			f, err := os.Open(entry.Path)
			if err != nil {
				return fmt.Errorf("打开文件失败: %w", err)
			}
			name := entry.Name
			if name == "" {
				name = filepath.Base(entry.Path)
			}
			parts = append(parts, uploadPart{field: field, name: name, file: f})
		}
		return nil
	}

	if err := add(FieldRAGFiles, upload.RAGFiles); err != nil {
		closeUploadParts(parts)
		return nil, err
	}
	if err := add(FieldFineTuneFiles, upload.FineTuneFiles); err != nil {
		closeUploadParts(parts)
		return nil, err
	}
	return parts, nil
}

func closeUploadParts(parts []uploadPart) {
	for _, p := range parts {
		p.file.Close()
	}
}

// writeUploadBody 把表单写入管道，出错时以该错误关闭管道
func writeUploadBody(pw *io.PipeWriter, mw *multipart.Writer, modelName string, parts []uploadPart) {
	defer closeUploadParts(parts)

	err := func() error {
		if err := mw.WriteField(FieldModelName, modelName); err != nil {
			return fmt.Errorf("构建表单失败: %w", err)
		}
		for _, p := range parts {
			w, err := mw.CreateFormFile(p.field, p.name)
			if err != nil {
				return fmt.Errorf("构建表单失败: %w", err)
			}
			if _, err := io.Copy(w, p.file); err != nil {
				return fmt.Errorf("读取文件失败: %w", err)
			}
		}
		return mw.Close()
	}()
	pw.CloseWithError(err)
}

// Query 对指定模型发起 RAG 查询，返回 results 字段
func (c *Client) Query(ctx context.Context, modelName, query string) (string, error) {
	if modelName == "" {
		return "", ErrNoModel
	}
	if query == "" {
		return "", ErrEmptyQuery
	}

	body, err := json.Marshal(QueryRequest{ModelName: modelName, Query: query})
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, c.serviceURL+"/rag", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	return out.Text(), nil
}

// Generate 发起流式补全请求，每解析出一行调用一次 onChunk，返回累积的完整文本
func (c *Client) Generate(ctx context.Context, model, prompt string, onChunk func(GenerateChunk)) (string, error) {
	resp, err := c.openGenerateStream(ctx, model, prompt)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	acc := NewStreamAccumulator()
	err = NewStreamDecoder(resp.Body, c.logger).Process(ctx, func(chunk GenerateChunk) {
		acc.Add(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	})
	return acc.String(), err
}

// GenerateWithChannel 执行流式补全请求并返回通道。
// 流结束时 chunk 通道关闭；出错时错误写入 errCh。
func (c *Client) GenerateWithChannel(ctx context.Context, model, prompt string) (<-chan GenerateChunk, <-chan error) {
	chunkCh := make(chan GenerateChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		_, err := c.Generate(ctx, model, prompt, func(chunk GenerateChunk) {
			select {
			case chunkCh <- chunk:
			case <-ctx.Done():
			}
		})
		if err != nil {
			errCh <- err
		}
	}()

	return chunkCh, errCh
}

func (c *Client) openGenerateStream(ctx context.Context, model, prompt string) (*http.Response, error) {
	body, err := json.Marshal(GenerateRequest{Model: model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.generateURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set(HeaderRequestID, uuid.NewString())
	return req, nil
}

// do 发送请求，非 2xx 状态码转换为 *APIError
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.String("request_id", req.Header.Get(HeaderRequestID)),
			zap.Error(err))
		return nil, fmt.Errorf("请求失败: %w", err)
	}

	c.logger.Debug("request done",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(bodyBytes)),
		}
	}
	return resp, nil
}
