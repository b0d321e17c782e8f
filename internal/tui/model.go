package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"github.com/Zacy-Sokach/CustardPie/internal/workspace"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Version 是当前的 CustardPie 版本，由 main 包设置
var Version string

// Service 模型定制服务，*api.Client 实现了它
type Service interface {
	ListModels(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, req api.UploadRequest) (api.UploadResult, error)
	Query(ctx context.Context, modelName, query string) (string, error)
}

type focusArea int

const (
	focusSidebar focusArea = iota
	focusCreate
	focusForm
	focusQuery
)

type formItem int

const (
	itemRAGToggle formItem = iota
	itemRAGPath
	itemFineTuneToggle
	itemFineTunePath
	itemSubmit
)

type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
	// ServiceURL 只用于在等待界面显示
	ServiceURL string
}

// Model 模型定制工作台：左侧模型列表，中间 RAG/微调表单，右侧查询面板
type Model struct {
	service      Service
	logger       *zap.Logger
	pollInterval time.Duration
	serviceURL   string

	state        *workspace.State
	modelsLoaded bool
	pollAttempts int
	lastPollErr  error

	focus      focusArea
	cursor     int
	formCursor int

	nameInput     textinput.Model
	ragInput      textinput.Model
	fineTuneInput textinput.Model
	queryInput    textinput.Model
	spinner       spinner.Model
	viewport      viewport.Model

	layout layout
	ready  bool

	status        string
	statusIsError bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewModel(service Service, opts Options) *Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = utils.DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	nameInput := textinput.New()
	nameInput.Placeholder = "Enter model name"
	nameInput.CharLimit = 128

	ragInput := textinput.New()
	ragInput.Placeholder = "files or folders, comma separated"

	fineTuneInput := textinput.New()
	fineTuneInput.Placeholder = "files or folders, comma separated"

	queryInput := textinput.New()
	queryInput.Placeholder = "Enter your query"

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	ctx, cancel := context.WithCancel(context.Background())

	state := workspace.New()
	// 首次加载模型列表期间显示等待界面
	state.Loading = true

	return &Model{
		service:       service,
		logger:        opts.Logger,
		pollInterval:  opts.PollInterval,
		serviceURL:    opts.ServiceURL,
		state:         state,
		nameInput:     nameInput,
		ragInput:      ragInput,
		fineTuneInput: fineTuneInput,
		queryInput:    queryInput,
		spinner:       sp,
		viewport:      viewport.New(80, 20),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// State 返回当前的工作台状态
func (m *Model) State() *workspace.State {
	return m.state
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchModels(), m.spinner.Tick, textinput.Blink)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchModelsMsg:
		if m.modelsLoaded {
			return m, nil
		}
		return m, m.fetchModels()

	case ModelsLoadedMsg:
		if m.modelsLoaded {
			return m, nil
		}
		m.modelsLoaded = true
		m.lastPollErr = nil
		m.state.SetModels(msg.Models)
		m.state.Loading = false
		m.logger.Info("models loaded",
			zap.Int("count", len(msg.Models)),
			zap.Int("attempts", m.pollAttempts))
		return m, nil

	case ModelsErrorMsg:
		if m.modelsLoaded {
			return m, nil
		}
		m.lastPollErr = msg.Error
		m.logger.Warn("fetching models failed, retrying",
			zap.Int("attempt", m.pollAttempts),
			zap.Duration("interval", m.pollInterval),
			zap.Error(msg.Error))
		return m, m.schedulePoll()

	case UploadDoneMsg:
		m.state.Loading = false
		if msg.Error != nil {
			m.logger.Error("upload failed", zap.Error(msg.Error))
			m.setError(fmt.Errorf("上传失败: %w", msg.Error))
			return m, nil
		}
		m.logger.Info("files uploaded", zap.String("response", msg.Result.String()))
		m.setStatus("文件上传成功")
		return m, nil

	case QueryDoneMsg:
		m.state.Loading = false
		if msg.Error != nil {
			m.logger.Error("query failed",
				zap.String("model", msg.Model),
				zap.Error(msg.Error))
			m.setError(fmt.Errorf("查询失败: %w", msg.Error))
			return m, nil
		}
		m.state.SetResponse(msg.Results)
		m.refreshResponse()
		m.setStatus("")
		return m, nil
	}

	return m, nil
}

func (m *Model) resize(width, height int) {
	m.layout = computeLayout(width, height)
	if !m.ready {
		m.viewport = viewport.New(m.layout.responseWidth, m.layout.responseHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.layout.responseWidth
		m.viewport.Height = m.layout.responseHeight
	}

	inputWidth := m.layout.formWidth - 8
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.ragInput.Width = inputWidth
	m.fineTuneInput.Width = inputWidth
	m.nameInput.Width = m.layout.sidebarWidth - 8
	m.queryInput.Width = m.layout.responseWidth - 2
	m.refreshResponse()
}

// fetchModels 发起一次模型列表请求
func (m *Model) fetchModels() tea.Cmd {
	m.pollAttempts++
	m.state.Loading = true
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		models, err := service.ListModels(ctx)
		if err != nil {
			return ModelsErrorMsg{Error: err}
		}
		return ModelsLoadedMsg{Models: models}
	}
}

// schedulePoll 固定间隔后重试，没有退避也没有次数上限
func (m *Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.pollInterval, func(time.Time) tea.Msg {
		return fetchModelsMsg{}
	})
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancel()
		return m, tea.Quit
	}

	// 请求进行中时屏蔽其他输入，和全屏遮罩的效果一致
	if m.state.Loading {
		return m, nil
	}

	switch m.focus {
	case focusCreate:
		return m.handleCreateKey(msg)
	case focusForm:
		return m.handleFormKey(msg)
	case focusQuery:
		return m.handleQueryKey(msg)
	default:
		return m.handleSidebarKey(msg)
	}
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Models) {
			m.cursor++
		}
	case "enter", " ":
		if m.cursor == len(m.state.Models) {
			return m, m.startCreate()
		}
		m.selectModel(m.state.Models[m.cursor])
	case "tab":
		if m.state.HasSelection() {
			return m, m.setFocus(focusForm)
		}
	case "shift+tab":
		if m.state.HasSelection() {
			return m, m.setFocus(focusQuery)
		}
	}
	return m, nil
}

func (m *Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.state.CancelCreate()
		m.nameInput.Reset()
		return m, m.setFocus(focusSidebar)
	case "enter":
		if !m.state.AppendModel(m.nameInput.Value()) {
			m.setError(fmt.Errorf("模型名称不能为空"))
			return m, nil
		}
		m.logger.Info("model created locally", zap.String("model", m.state.Models[len(m.state.Models)-1]))
		m.cursor = len(m.state.Models) - 1
		m.nameInput.Reset()
		m.setStatus("")
		return m, m.setFocus(focusSidebar)
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	m.state.DraftName = m.nameInput.Value()
	return m, cmd
}

func (m *Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.formItems()
	current := items[m.formCursor]

	switch msg.String() {
	case "esc":
		return m, m.setFocus(focusSidebar)
	case "tab":
		return m, m.setFocus(focusQuery)
	case "shift+tab":
		return m, m.setFocus(focusSidebar)
	case "up":
		if m.formCursor > 0 {
			m.formCursor--
		}
		return m, m.focusFormInput()
	case "down":
		if m.formCursor < len(items)-1 {
			m.formCursor++
		}
		return m, m.focusFormInput()
	case " ":
		if current == itemRAGToggle || current == itemFineTuneToggle {
			m.toggle(current)
			return m, nil
		}
	case "enter":
		switch current {
		case itemRAGToggle, itemFineTuneToggle:
			m.toggle(current)
			return m, nil
		case itemRAGPath, itemFineTunePath:
			m.commitPaths(current)
			return m, nil
		case itemSubmit:
			return m, m.submitUpload()
		}
	}

	var cmd tea.Cmd
	switch current {
	case itemRAGPath:
		m.ragInput, cmd = m.ragInput.Update(msg)
	case itemFineTunePath:
		m.fineTuneInput, cmd = m.fineTuneInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab":
		return m, m.setFocus(focusSidebar)
	case "shift+tab":
		return m, m.setFocus(focusForm)
	case "enter":
		return m, m.submitQuery()
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.queryInput, cmd = m.queryInput.Update(msg)
	m.state.Query = m.queryInput.Value()
	return m, cmd
}

func (m *Model) startCreate() tea.Cmd {
	m.state.StartCreate()
	m.nameInput.Reset()
	return m.setFocus(focusCreate)
}

// selectModel 切换模型并清空与模型相关的临时输入
func (m *Model) selectModel(name string) {
	m.state.SelectModel(name)
	m.ragInput.Reset()
	m.fineTuneInput.Reset()
	m.formCursor = 0
	m.setStatus("")
	m.logger.Debug("model selected", zap.String("model", name))
}

func (m *Model) toggle(item formItem) {
	if item == itemRAGToggle {
		m.state.ToggleRAG()
	} else {
		m.state.ToggleFineTune()
	}
	// 关闭开关后对应的输入框消失，光标可能越界
	if n := len(m.formItems()); m.formCursor >= n {
		m.formCursor = n - 1
	}
}

// formItems 返回当前可见的表单项
func (m *Model) formItems() []formItem {
	items := []formItem{itemRAGToggle}
	if m.state.RAGOn {
		items = append(items, itemRAGPath)
	}
	items = append(items, itemFineTuneToggle)
	if m.state.FineTuneOn {
		items = append(items, itemFineTunePath)
	}
	return append(items, itemSubmit)
}

// commitPaths 把输入框中的路径展开为文件列表并替换当前选择
func (m *Model) commitPaths(item formItem) bool {
	input := m.ragInput
	if item == itemFineTunePath {
		input = m.fineTuneInput
	}

	files, err := utils.ExpandPaths(utils.SplitPathList(input.Value()))
	if err != nil {
		m.logger.Warn("invalid file selection", zap.Error(err))
		m.setError(err)
		return false
	}

	if item == itemRAGPath {
		m.state.SetRAGFiles(files)
	} else {
		m.state.SetFineTuneFiles(files)
	}
	m.setStatus(fmt.Sprintf("已选择 %d 个文件", len(files)))
	return true
}

func (m *Model) submitUpload() tea.Cmd {
	// 提交时以输入框的内容为准
	if m.state.RAGOn && !m.commitPaths(itemRAGPath) {
		return nil
	}
	if m.state.FineTuneOn && !m.commitPaths(itemFineTunePath) {
		return nil
	}
	if !m.state.CanUpload() {
		m.setError(fmt.Errorf("请先开启 RAG 或 Fine-tune 并选择文件"))
		return nil
	}

	req := m.state.UploadRequest()
	m.state.Loading = true
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		result, err := service.Upload(ctx, req)
		return UploadDoneMsg{Result: result, Error: err}
	}
}

// submitQuery 未选择模型或查询为空时不发请求
func (m *Model) submitQuery() tea.Cmd {
	if !m.state.CanSubmitQuery() {
		return nil
	}

	model, query := m.state.Selected, m.state.Query
	m.state.Loading = true
	ctx, service := m.ctx, m.service
	return func() tea.Msg {
		results, err := service.Query(ctx, model, query)
		return QueryDoneMsg{Model: model, Query: query, Results: results, Error: err}
	}
}

func (m *Model) setFocus(focus focusArea) tea.Cmd {
	m.focus = focus
	m.nameInput.Blur()
	m.ragInput.Blur()
	m.fineTuneInput.Blur()
	m.queryInput.Blur()

	switch focus {
	case focusCreate:
		return m.nameInput.Focus()
	case focusForm:
		return m.focusFormInput()
	case focusQuery:
		return m.queryInput.Focus()
	}
	return nil
}

func (m *Model) focusFormInput() tea.Cmd {
	m.ragInput.Blur()
	m.fineTuneInput.Blur()
	switch m.formItems()[m.formCursor] {
	case itemRAGPath:
		return m.ragInput.Focus()
	case itemFineTunePath:
		return m.fineTuneInput.Focus()
	}
	return nil
}

func (m *Model) refreshResponse() {
	if !m.state.HasResponse {
		m.viewport.SetContent("")
		return
	}
	rendered := GetMarkdownRenderer().Render(m.state.Response)
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.layout.responseWidth).Render(rendered))
	m.viewport.GotoTop()
}

func (m *Model) setStatus(status string) {
	m.status = status
	m.statusIsError = false
	m.state.SetError(nil)
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusIsError = true
	m.state.SetError(err)
}
