package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	brandName    = "CustardPie"
	brandTagline = "CustardPie is a SaaS platform that provides a simple way to customize LLM models per your needs."
	placeholder  = "Please select a model to continue"
	createEntry  = "+ Create model"
)

func (m *Model) View() string {
	if !m.ready {
		return "初始化中..."
	}

	if m.state.Loading {
		return m.loadingView()
	}

	var main string
	if m.state.HasSelection() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.formView(), m.queryView())
	} else {
		main = m.placeholderView()
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), main)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusView(), m.helpView())
}

// loadingView 全屏遮罩，请求结束前屏蔽所有交互
func (m *Model) loadingView() string {
	lines := []string{
		m.spinner.View() + " " + titleStyle.Render("Loading..."),
	}
	if !m.modelsLoaded {
		if m.serviceURL != "" {
			lines = append(lines, mutedStyle.Render("等待服务响应: "+m.serviceURL))
		}
		if m.pollAttempts > 1 {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("第 %d 次尝试", m.pollAttempts)))
		}
		if m.lastPollErr != nil {
			lines = append(lines, warnStyle.Render(truncateLine(m.lastPollErr.Error(), m.layout.width-4)))
		}
	}
	return lipgloss.Place(m.layout.width, m.layout.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...))
}

func (m *Model) sidebarView() string {
	var sb strings.Builder
	sb.WriteString(brandStyle.Render(brandName))
	if Version != "" {
		sb.WriteString(" " + mutedStyle.Render(Version))
	}
	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Width(m.layout.sidebarWidth - 4).Render(brandTagline))
	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("Models"))
	sb.WriteString("\n")

	active := m.focus == focusSidebar
	for i, name := range m.state.Models {
		line := "  " + name
		if name == m.state.Selected {
			line = selectedItemStyle.Render("> " + name)
		}
		if active && i == m.cursor {
			line = cursorItemStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if m.state.Creating {
		sb.WriteString(m.nameInput.View())
		sb.WriteString("\n")
	} else {
		entry := "  " + createEntry
		if active && m.cursor == len(m.state.Models) {
			entry = cursorItemStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}

	return sidebarStyle.
		Width(m.layout.sidebarWidth).
		Height(m.layout.bodyHeight).
		Render(sb.String())
}

func (m *Model) formView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Enrich " + m.state.Selected))
	sb.WriteString("\n\n")

	active := m.focus == focusForm
	items := m.formItems()
	for i, item := range items {
		focused := active && i == m.formCursor
		sb.WriteString(m.formItemView(item, focused))
		sb.WriteString("\n")
	}

	return formStyle.
		Width(m.layout.formWidth).
		Height(m.layout.bodyHeight).
		Render(sb.String())
}

func (m *Model) formItemView(item formItem, focused bool) string {
	prefix := "  "
	if focused {
		prefix = "> "
	}

	switch item {
	case itemRAGToggle:
		return prefix + checkbox(m.state.RAGOn) + " RAG"
	case itemFineTuneToggle:
		return prefix + checkbox(m.state.FineTuneOn) + " Fine-tune"
	case itemRAGPath:
		return "    " + m.ragInput.View() + "\n" + "    " + mutedStyle.Render(fileCount(len(m.state.RAGFiles)))
	case itemFineTunePath:
		return "    " + m.fineTuneInput.View() + "\n" + "    " + mutedStyle.Render(fileCount(len(m.state.FineTuneFiles)))
	case itemSubmit:
		if focused {
			return "\n" + activeButtonStyle.Render("Submit")
		}
		return "\n" + buttonStyle.Render("Submit")
	}
	return ""
}

func (m *Model) queryView() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.state.Selected))
	sb.WriteString("\n\n")
	sb.WriteString(m.queryInput.View())
	sb.WriteString("\n\n")

	if m.focus == focusQuery {
		sb.WriteString(activeButtonStyle.Render("Submit"))
	} else {
		sb.WriteString(buttonStyle.Render("Submit"))
	}
	sb.WriteString("\n\n")

	if m.state.HasResponse {
		sb.WriteString(titleStyle.Render("Response"))
		sb.WriteString("\n")
		sb.WriteString(responseBoxStyle.Render(m.viewport.View()))
	}

	return queryStyle.
		Width(m.layout.queryWidth).
		Height(m.layout.bodyHeight).
		Render(sb.String())
}

func (m *Model) placeholderView() string {
	width := m.layout.width - m.layout.sidebarWidth
	return lipgloss.Place(width, m.layout.bodyHeight,
		lipgloss.Center, lipgloss.Center,
		mutedStyle.Render(placeholder))
}

func (m *Model) statusView() string {
	if m.status == "" {
		return ""
	}
	status := truncateLine(m.status, m.layout.width)
	if m.statusIsError {
		return errorStyle.Render(status)
	}
	return okStyle.Render(status)
}

func (m *Model) helpView() string {
	var help string
	switch m.focus {
	case focusCreate:
		help = "Enter: 创建 | Esc: 取消"
	case focusForm:
		help = "↑/↓: 移动 | Space: 开关 | Enter: 确认 | Tab: 查询 | Esc: 返回"
	case focusQuery:
		help = "Enter: 查询 | PgUp/PgDn: 滚动 | Shift+Tab: 表单 | Esc: 返回"
	default:
		help = "↑/↓: 选择 | Enter: 打开 | Tab: 表单 | q: 退出"
	}
	return mutedStyle.Render(help)
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func fileCount(n int) string {
	if n == 1 {
		return "1 file selected"
	}
	return fmt.Sprintf("%d files selected", n)
}

func truncateLine(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 3 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) > width-3 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
