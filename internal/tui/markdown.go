package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/russross/blackfriday/v2"
)

// 全局Markdown渲染器单例
var (
	globalMarkdownRenderer *MarkdownRenderer
	rendererOnce           sync.Once
)

// GetMarkdownRenderer 获取Markdown渲染器单例
func GetMarkdownRenderer() *MarkdownRenderer {
	rendererOnce.Do(func() {
		globalMarkdownRenderer = NewMarkdownRenderer()
	})
	return globalMarkdownRenderer
}

// MarkdownRenderer 把模型返回的 Markdown 转成终端文本
type MarkdownRenderer struct {
	heading   lipgloss.Style
	strong    lipgloss.Style
	emph      lipgloss.Style
	del       lipgloss.Style
	code      lipgloss.Style
	codeBlock lipgloss.Style
	link      lipgloss.Style
	quote     lipgloss.Style
	rule      lipgloss.Style
}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		heading:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		strong:    lipgloss.NewStyle().Bold(true),
		emph:      lipgloss.NewStyle().Italic(true),
		del:       lipgloss.NewStyle().Strikethrough(true),
		code:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		codeBlock: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		link:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true),
		quote:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		rule:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Render 渲染 Markdown 文本
func (r *MarkdownRenderer) Render(markdown string) string {
	parser := blackfriday.New(blackfriday.WithExtensions(blackfriday.CommonExtensions))
	root := parser.Parse([]byte(markdown))

	var sb strings.Builder
	for child := root.FirstChild; child != nil; child = child.Next {
		r.renderBlock(&sb, child, "")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r *MarkdownRenderer) renderBlock(sb *strings.Builder, node *blackfriday.Node, indent string) {
	switch node.Type {
	case blackfriday.Heading:
		sb.WriteString(indent)
		sb.WriteString(r.heading.Render(strings.Repeat("#", node.Level) + " " + r.renderInline(node)))
		sb.WriteString("\n\n")

	case blackfriday.Paragraph:
		text := r.renderInline(node)
		for i, line := range strings.Split(text, "\n") {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(indent)
			sb.WriteString(line)
		}
		sb.WriteString("\n")
		if !isTightListParagraph(node) {
			sb.WriteString("\n")
		}

	case blackfriday.CodeBlock:
		code := strings.TrimRight(string(node.Literal), "\n")
		for _, line := range strings.Split(code, "\n") {
			sb.WriteString(indent)
			sb.WriteString("  ")
			sb.WriteString(r.codeBlock.Render(line))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")

	case blackfriday.List:
		ordered := node.ListFlags&blackfriday.ListTypeOrdered != 0
		n := 1
		for item := node.FirstChild; item != nil; item = item.Next {
			marker := "• "
			if ordered {
				marker = fmt.Sprintf("%d. ", n)
			}
			n++
			r.renderItem(sb, item, indent, marker)
		}
		if node.Parent == nil || node.Parent.Type != blackfriday.Item {
			sb.WriteString("\n")
		}

	case blackfriday.BlockQuote:
		var inner strings.Builder
		for child := node.FirstChild; child != nil; child = child.Next {
			r.renderBlock(&inner, child, "")
		}
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			sb.WriteString(indent)
			sb.WriteString(r.quote.Render("│ " + line))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")

	case blackfriday.HorizontalRule:
		sb.WriteString(indent)
		sb.WriteString(r.rule.Render(strings.Repeat("─", 24)))
		sb.WriteString("\n\n")

	case blackfriday.Table:
		r.renderTable(sb, node, indent)

	case blackfriday.HTMLBlock:
		sb.WriteString(indent)
		sb.WriteString(strings.TrimSpace(string(node.Literal)))
		sb.WriteString("\n\n")

	default:
		sb.WriteString(indent)
		sb.WriteString(r.renderInline(node))
		sb.WriteString("\n")
	}
}

// renderItem 列表项：首行带标记，后续块缩进对齐
func (r *MarkdownRenderer) renderItem(sb *strings.Builder, item *blackfriday.Node, indent, marker string) {
	childIndent := indent + strings.Repeat(" ", len([]rune(marker)))
	first := true
	for child := item.FirstChild; child != nil; child = child.Next {
		if first {
			var inner strings.Builder
			r.renderBlock(&inner, child, "")
			lines := strings.Split(strings.TrimRight(inner.String(), "\n"), "\n")
			sb.WriteString(indent + marker + lines[0] + "\n")
			for _, line := range lines[1:] {
				if line == "" {
					sb.WriteString("\n")
					continue
				}
				sb.WriteString(childIndent + line + "\n")
			}
			first = false
			continue
		}
		r.renderBlock(sb, child, childIndent)
	}
}

func (r *MarkdownRenderer) renderTable(sb *strings.Builder, table *blackfriday.Node, indent string) {
	table.Walk(func(node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
		if node.Type != blackfriday.TableRow || !entering {
			return blackfriday.GoToNext
		}
		var cells []string
		for cell := node.FirstChild; cell != nil; cell = cell.Next {
			text := r.renderInline(cell)
			if cell.IsHeader {
				text = r.strong.Render(text)
			}
			cells = append(cells, text)
		}
		sb.WriteString(indent)
		sb.WriteString(strings.Join(cells, " │ "))
		sb.WriteString("\n")
		return blackfriday.SkipChildren
	})
	sb.WriteString("\n")
}

// renderInline 拼接节点下的行内内容
func (r *MarkdownRenderer) renderInline(node *blackfriday.Node) string {
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.Next {
		switch child.Type {
		case blackfriday.Text, blackfriday.HTMLSpan:
			sb.Write(child.Literal)
		case blackfriday.Code:
			sb.WriteString(r.code.Render(string(child.Literal)))
		case blackfriday.Strong:
			sb.WriteString(r.strong.Render(r.renderInline(child)))
		case blackfriday.Emph:
			sb.WriteString(r.emph.Render(r.renderInline(child)))
		case blackfriday.Del:
			sb.WriteString(r.del.Render(r.renderInline(child)))
		case blackfriday.Link:
			label := r.renderInline(child)
			dest := string(child.Destination)
			if label == "" || label == dest {
				sb.WriteString(r.link.Render(dest))
			} else {
				sb.WriteString(r.link.Render(label) + " (" + dest + ")")
			}
		case blackfriday.Image:
			sb.WriteString("[image: " + r.renderInline(child) + "]")
		case blackfriday.Softbreak:
			sb.WriteString("\n")
		case blackfriday.Hardbreak:
			sb.WriteString("\n")
		default:
			sb.WriteString(r.renderInline(child))
		}
	}
	return sb.String()
}

func isTightListParagraph(node *blackfriday.Node) bool {
	item := node.Parent
	if item == nil || item.Type != blackfriday.Item {
		return false
	}
	list := item.Parent
	return list != nil && list.Type == blackfriday.List && list.Tight
}
