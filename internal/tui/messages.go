package tui

import (
	"github.com/Zacy-Sokach/CustardPie/internal/api"
)

// Message types for tea.Model

// fetchModelsMsg 触发一次模型列表请求
type fetchModelsMsg struct{}

type ModelsLoadedMsg struct {
	Models []string
}

type ModelsErrorMsg struct {
	Error error
}

type UploadDoneMsg struct {
	Result api.UploadResult
	Error  error
}

type QueryDoneMsg struct {
	Model   string
	Query   string
	Results string
	Error   error
}

type StreamChunkMsg struct {
	Chunk api.GenerateChunk
}

// StreamEndMsg 流结束，Error 为 nil 表示正常结束
type StreamEndMsg struct {
	Error error
}
