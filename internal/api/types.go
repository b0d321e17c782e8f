package api

import (
	"encoding/json"
	"strings"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
)

// multipart 表单字段名，与服务端约定一致
const (
	FieldModelName     = "modelName"
	FieldRAGFiles      = "ragFiles"
	FieldFineTuneFiles = "fineTuneFiles"
)

// Endpoints 服务地址
type Endpoints struct {
	// ServiceURL 模型定制服务（/models, /upload, /rag）
	ServiceURL string
	// GenerateURL 流式补全服务（/api/generate）
	GenerateURL string
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

// UploadRequest 一次上传的内容。
// 文件从 Path 读取，以 Name 作为 multipart 的文件名发送。
type UploadRequest struct {
	ModelName     string
	RAGFiles      []utils.FileEntry
	FineTuneFiles []utils.FileEntry
}

// FileCount 返回两组文件的总数
func (r UploadRequest) FileCount() int {
	return len(r.RAGFiles) + len(r.FineTuneFiles)
}

// UploadResult 服务端返回的原始 JSON，只用于记录日志
type UploadResult struct {
	Raw json.RawMessage
}

func (r UploadResult) String() string {
	return string(r.Raw)
}

type QueryRequest struct {
	ModelName string `json:"model_name"`
	Query     string `json:"query"`
}

type QueryResponse struct {
	Results json.RawMessage `json:"results"`
}

// Text 返回 results 的文本形式：字符串直接返回，其他 JSON 原样返回
func (r QueryResponse) Text() string {
	if len(r.Results) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Results, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.Results))
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// GenerateChunk 流式响应中的一行
type GenerateChunk struct {
	Model    string `json:"model,omitempty"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}
