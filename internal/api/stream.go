package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// StreamDecoder 逐行解析换行分隔的 JSON 流。
// 行在 bufio 缓冲中拼接，跨网络分片的行不会丢失。
type StreamDecoder struct {
	reader *bufio.Reader
	logger *zap.Logger
}

// NewStreamDecoder 创建流解析器，logger 可以为 nil
func NewStreamDecoder(r io.Reader, logger *zap.Logger) *StreamDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamDecoder{
		reader: bufio.NewReader(r),
		logger: logger,
	}
}

// Process 读取整个流并对每一行调用 callback。
// 遇到 done 行、流结束或上下文取消时返回。
func (d *StreamDecoder) Process(ctx context.Context, callback func(GenerateChunk)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := d.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if chunk.Error != "" {
			return fmt.Errorf("stream error: %s", chunk.Error)
		}

		callback(*chunk)
		if chunk.Done {
			return nil
		}
	}
}

// Next 返回下一条可解析的行，空行和非法 JSON 会被跳过。
// 流结束时返回 io.EOF。
func (d *StreamDecoder) Next() (*GenerateChunk, error) {
	for {
		line, err := d.reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading stream response failed: %w", err)
		}

		// EOF 前最后一行没有换行符也要处理
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var chunk GenerateChunk
			if jsonErr := json.Unmarshal(line, &chunk); jsonErr != nil {
				d.logger.Debug("skipping malformed stream line",
					zap.String("line", truncate(string(line), 200)),
					zap.Error(jsonErr))
			} else {
				return &chunk, nil
			}
		}

		if err != nil {
			return nil, io.EOF
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StreamAccumulator 累积流式响应的文本，每次新请求前重置
type StreamAccumulator struct {
	content strings.Builder
	done    bool
}

func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Add 追加一行的 response 字段
func (a *StreamAccumulator) Add(chunk GenerateChunk) {
	a.content.WriteString(chunk.Response)
	if chunk.Done {
		a.done = true
	}
}

func (a *StreamAccumulator) String() string {
	return a.content.String()
}

func (a *StreamAccumulator) Done() bool {
	return a.done
}

func (a *StreamAccumulator) Reset() {
	a.content.Reset()
	a.done = false
}
