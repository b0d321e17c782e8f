package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// idleHintAfter 流式请求超过该时间没有新输出时在标题栏提示
const idleHintAfter = 3 * time.Second

// Generator 流式补全接口，*api.Client 实现了它
type Generator interface {
	GenerateWithChannel(ctx context.Context, model, prompt string) (<-chan api.GenerateChunk, <-chan error)
}

// GenerateModel 单输入框的流式补全界面
type GenerateModel struct {
	generator Generator
	model     string
	logger    *zap.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	stream   *StreamManager

	// errText 专用的错误行
	errText  string
	canceled bool

	width  int
	height int
	ready  bool
}

func NewGenerateModel(generator Generator, model string, logger *zap.Logger) *GenerateModel {
	if logger == nil {
		logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "Enter a prompt"
	ti.Focus()

	return &GenerateModel{
		generator: generator,
		model:     model,
		logger:    logger,
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		stream:    NewStreamManager(),
	}
}

func (m *GenerateModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *GenerateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		// 标题、输入框、错误行、帮助行
		h := msg.Height - 6
		if h < 3 {
			h = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = h
		}
		m.input.Width = msg.Width - 4
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamChunkMsg:
		m.stream.Add(msg.Chunk)
		m.refresh()
		return m, m.waitForChunk()

	case StreamEndMsg:
		m.stream.Finish()
		switch {
		case m.canceled:
			m.logger.Info("generation canceled", zap.Int("chunks", m.stream.ChunkCount()))
			m.errText = "已取消"
		case msg.Error != nil:
			m.logger.Error("generation failed", zap.Error(msg.Error))
			m.errText = msg.Error.Error()
		default:
			m.logger.Info("generation done", zap.Int("chunks", m.stream.ChunkCount()))
		}
		m.canceled = false
		m.refresh()
		return m, nil
	}

	return m, nil
}

func (m *GenerateModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.stream.Cancel()
		return m, tea.Quit
	case "esc":
		if m.stream.IsStreaming() {
			// 等待 StreamEndMsg 再结束，避免旧请求的消息混入新请求
			m.canceled = true
			m.stream.Cancel()
			return m, nil
		}
		return m, tea.Quit
	case "enter":
		if m.stream.IsStreaming() {
			return m, nil
		}
		return m, m.startStream()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// startStream 清空上一次的输出和错误，然后开始新的请求
func (m *GenerateModel) startStream() tea.Cmd {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return nil
	}

	m.errText = ""
	m.canceled = false
	m.stream.ResetContext()
	chunkCh, errCh := m.generator.GenerateWithChannel(m.stream.GetContext(), m.model, prompt)
	m.stream.Start(chunkCh, errCh)
	m.refresh()

	m.logger.Debug("generation started", zap.String("model", m.model), zap.Int("prompt_len", len(prompt)))
	return m.waitForChunk()
}

// waitForChunk 读取下一块输出；chunk 通道关闭后读取错误通道
func (m *GenerateModel) waitForChunk() tea.Cmd {
	chunkCh, errCh := m.stream.Channels()
	if chunkCh == nil {
		return nil
	}
	return func() tea.Msg {
		chunk, ok := <-chunkCh
		if ok {
			return StreamChunkMsg{Chunk: chunk}
		}
		// errCh 关闭且没有值时读到 nil
		return StreamEndMsg{Error: <-errCh}
	}
}

// Response 当前累积的输出
func (m *GenerateModel) Response() string {
	return m.stream.Response()
}

// Err 错误行的内容
func (m *GenerateModel) Err() string {
	return m.errText
}

func (m *GenerateModel) refresh() {
	content := m.stream.Response()
	if m.width > 0 {
		content = lipgloss.NewStyle().Width(m.width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *GenerateModel) View() string {
	if !m.ready {
		return "初始化中..."
	}

	title := titleStyle.Render("Generate") + " " + mutedStyle.Render(m.model)
	if m.stream.IsStreaming() {
		title += " " + m.spinner.View()
		// 模型加载时首块输出可能要等很久
		if idle := m.stream.IdleFor(time.Now()); idle >= idleHintAfter {
			title += " " + mutedStyle.Render(fmt.Sprintf("已等待 %ds", int(idle.Seconds())))
		}
	}

	var errLine string
	if m.errText != "" {
		errLine = errorStyle.Render("Error: " + m.errText)
	}

	help := "Enter: 发送 | Esc: 退出"
	if m.stream.IsStreaming() {
		help = "Esc: 取消 | PgUp/PgDn: 滚动"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.input.View(),
		"",
		m.viewport.View(),
		errLine,
		mutedStyle.Render(help),
	)
}
