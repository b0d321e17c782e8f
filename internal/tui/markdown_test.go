package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownRenderer_StripsMarkup(t *testing.T) {
	out := NewMarkdownRenderer().Render("# Refund policy\n\nYou have **30 days** to ask for a `refund`.")

	assert.Contains(t, out, "Refund policy")
	assert.Contains(t, out, "30 days")
	assert.Contains(t, out, "refund")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "`")
}

func TestMarkdownRenderer_Lists(t *testing.T) {
	out := NewMarkdownRenderer().Render("- apples\n- pears\n\n1. first\n2. second\n")

	assert.Contains(t, out, "• apples")
	assert.Contains(t, out, "• pears")
	assert.Contains(t, out, "1. first")
	assert.Contains(t, out, "2. second")
}

func TestMarkdownRenderer_CodeBlockKeepsLines(t *testing.T) {
	out := NewMarkdownRenderer().Render("```go\nfmt.Println(\"a\")\nfmt.Println(\"b\")\n```\n")

	lines := strings.Split(out, "\n")
	assert.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, out, `fmt.Println("a")`)
	assert.Contains(t, out, `fmt.Println("b")`)
	assert.NotContains(t, out, "```")
}

func TestMarkdownRenderer_Links(t *testing.T) {
	out := NewMarkdownRenderer().Render("See [the docs](https://example.com/docs).")

	assert.Contains(t, out, "the docs")
	assert.Contains(t, out, "(https://example.com/docs)")
}

func TestMarkdownRenderer_PlainTextUnchanged(t *testing.T) {
	out := GetMarkdownRenderer().Render("just an answer")
	assert.Equal(t, "just an answer", out)
}
