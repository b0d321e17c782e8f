// Package workspace 保存模型定制页面的交互状态。
// 所有网络请求由调用方发起，这里只负责状态转换和前置条件判断。
package workspace

import (
	"strings"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
	"github.com/Zacy-Sokach/CustardPie/internal/utils"
)

type State struct {
	Models  []string
	Loading bool

	// Selected 为空表示未选择模型
	Selected string

	RAGOn         bool
	FineTuneOn    bool
	RAGFiles      []utils.FileEntry
	FineTuneFiles []utils.FileEntry

	Creating  bool
	DraftName string

	Query       string
	Response    string
	HasResponse bool

	// LastError 最近一次失败的描述，只用于状态栏展示
	LastError string
}

func New() *State {
	return &State{Models: []string{}}
}

// SetModels 替换整个模型列表
func (s *State) SetModels(models []string) {
	s.Models = append([]string(nil), models...)
}

// AppendModel 在本地列表追加一个新模型，不经过服务端。
// 空白名称被忽略，返回是否追加成功。
func (s *State) AppendModel(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.Models = append(s.Models, name)
	s.Creating = false
	s.DraftName = ""
	return true
}

func (s *State) StartCreate() {
	s.Creating = true
}

func (s *State) CancelCreate() {
	s.Creating = false
	s.DraftName = ""
}

// HasSelection 是否已选择模型
func (s *State) HasSelection() bool {
	return s.Selected != ""
}

// SelectModel 切换当前模型，同时清空文件选择和两个开关
func (s *State) SelectModel(name string) {
	if s.Creating {
		s.CancelCreate()
	}
	s.Selected = name
	s.RAGOn = false
	s.FineTuneOn = false
	s.RAGFiles = nil
	s.FineTuneFiles = nil
}

func (s *State) ToggleRAG() {
	s.RAGOn = !s.RAGOn
}

func (s *State) ToggleFineTune() {
	s.FineTuneOn = !s.FineTuneOn
}

// SetRAGFiles 整体替换 RAG 文件选择
func (s *State) SetRAGFiles(files []utils.FileEntry) {
	s.RAGFiles = append([]utils.FileEntry(nil), files...)
}

// SetFineTuneFiles 整体替换微调文件选择
func (s *State) SetFineTuneFiles(files []utils.FileEntry) {
	s.FineTuneFiles = append([]utils.FileEntry(nil), files...)
}

// UploadRequest 按当前选择生成上传请求，只包含已开启模式的文件
func (s *State) UploadRequest() api.UploadRequest {
	req := api.UploadRequest{ModelName: s.Selected}
	if s.RAGOn {
		req.RAGFiles = append([]utils.FileEntry(nil), s.RAGFiles...)
	}
	if s.FineTuneOn {
		req.FineTuneFiles = append([]utils.FileEntry(nil), s.FineTuneFiles...)
	}
	return req
}

// CanUpload 已选择模型并且至少有一个待上传文件
func (s *State) CanUpload() bool {
	return s.HasSelection() && s.UploadRequest().FileCount() > 0
}

// CanSubmitQuery 未选择模型或查询为空时不应发起请求
func (s *State) CanSubmitQuery() bool {
	return s.HasSelection() && s.Query != ""
}

// SetResponse 覆盖上一次的响应，不保留历史
func (s *State) SetResponse(response string) {
	s.Response = response
	s.HasResponse = true
	s.LastError = ""
}

func (s *State) SetError(err error) {
	if err == nil {
		s.LastError = ""
		return
	}
	s.LastError = err.Error()
}
