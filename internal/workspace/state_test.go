package workspace

import (
	"errors"
	"fmt"
	"path"
	"testing"

	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	"github.com/stretchr/testify/assert"
)

func entries(paths ...string) []utils.FileEntry {
	files := make([]utils.FileEntry, len(paths))
	for i, p := range paths {
		files[i] = utils.FileEntry{Path: p, Name: path.Base(p)}
	}
	return files
}

func TestSelectModelResetsTransientState(t *testing.T) {
	// 所有开关和文件选择的组合
	for mask := 0; mask < 16; mask++ {
		ragOn := mask&1 != 0
		fineTuneOn := mask&2 != 0
		withRAGFiles := mask&4 != 0
		withFineTuneFiles := mask&8 != 0

		t.Run(fmt.Sprintf("rag=%v/ft=%v/ragFiles=%v/ftFiles=%v", ragOn, fineTuneOn, withRAGFiles, withFineTuneFiles), func(t *testing.T) {
			s := New()
			s.SetModels([]string{"a", "b"})
			s.SelectModel("a")
			s.RAGOn = ragOn
			s.FineTuneOn = fineTuneOn
			if withRAGFiles {
				s.SetRAGFiles(entries("/docs/a.md"))
			}
			if withFineTuneFiles {
				s.SetFineTuneFiles(entries("/train/a.jsonl"))
			}

			s.SelectModel("b")

			assert.Equal(t, "b", s.Selected)
			assert.False(t, s.RAGOn)
			assert.False(t, s.FineTuneOn)
			assert.Empty(t, s.RAGFiles)
			assert.Empty(t, s.FineTuneFiles)
		})
	}
}

func TestSelectModelLeavesCreateMode(t *testing.T) {
	s := New()
	s.SetModels([]string{"a"})
	s.StartCreate()
	s.DraftName = "half typed"

	s.SelectModel("a")

	assert.False(t, s.Creating)
	assert.Equal(t, "", s.DraftName)
}

func TestAppendModelIsImmediate(t *testing.T) {
	s := New()
	s.SetModels([]string{"a"})
	s.StartCreate()

	assert.True(t, s.AppendModel("X"))
	assert.Equal(t, []string{"a", "X"}, s.Models)
	assert.False(t, s.Creating)

	assert.False(t, s.AppendModel("   "))
	assert.Equal(t, []string{"a", "X"}, s.Models)
}

func TestTogglesAreIndependent(t *testing.T) {
	s := New()
	s.ToggleRAG()
	s.ToggleFineTune()
	assert.True(t, s.RAGOn)
	assert.True(t, s.FineTuneOn)

	s.ToggleRAG()
	assert.False(t, s.RAGOn)
	assert.True(t, s.FineTuneOn)
}

func TestCanSubmitQuery(t *testing.T) {
	s := New()
	s.Query = "hello"
	assert.False(t, s.CanSubmitQuery(), "no model selected")

	s.SelectModel("a")
	s.Query = ""
	assert.False(t, s.CanSubmitQuery(), "empty query")

	s.Query = "hello"
	assert.True(t, s.CanSubmitQuery())
}

func TestUploadRequestSnapshot(t *testing.T) {
	s := New()
	s.SelectModel("support-bot")
	s.ToggleRAG()
	s.ToggleFineTune()
	s.SetRAGFiles(entries("/docs/a.md", "/docs/b.md"))
	s.SetFineTuneFiles(entries("/train/t.jsonl"))

	req := s.UploadRequest()
	assert.Equal(t, "support-bot", req.ModelName)
	assert.Equal(t, entries("/docs/a.md", "/docs/b.md"), req.RAGFiles)
	assert.Equal(t, entries("/train/t.jsonl"), req.FineTuneFiles)

	// 之后的修改不影响已生成的请求
	s.SetRAGFiles(entries("/docs/c.md"))
	assert.Equal(t, entries("/docs/a.md", "/docs/b.md"), req.RAGFiles)
}

func TestUploadRequestSkipsDisabledModes(t *testing.T) {
	s := New()
	s.SelectModel("m")
	s.ToggleRAG()
	s.SetRAGFiles(entries("/docs/a.md"))
	s.SetFineTuneFiles(entries("/train/t.jsonl"))

	req := s.UploadRequest()
	assert.Equal(t, entries("/docs/a.md"), req.RAGFiles)
	assert.Empty(t, req.FineTuneFiles)
	assert.True(t, s.CanUpload())

	s.ToggleRAG()
	assert.False(t, s.CanUpload())
}

func TestSetFilesReplacesWholesale(t *testing.T) {
	s := New()
	s.SetRAGFiles(entries("a", "b"))
	s.SetRAGFiles(entries("c"))
	assert.Equal(t, entries("c"), s.RAGFiles)
}

func TestSetResponseOverwrites(t *testing.T) {
	s := New()
	s.SetError(errors.New("timeout"))
	s.SetResponse("first")
	s.SetResponse("second")

	assert.Equal(t, "second", s.Response)
	assert.True(t, s.HasResponse)
	assert.Equal(t, "", s.LastError)
}
