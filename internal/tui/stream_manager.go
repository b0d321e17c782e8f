package tui

import (
	"context"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
)

// StreamManager 管理一次生成请求的流式状态
type StreamManager struct {
	streaming   bool
	acc         *api.StreamAccumulator
	chunkCh     <-chan api.GenerateChunk
	errCh       <-chan error
	lastChunkAt time.Time
	chunks      int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStreamManager 创建新的流式管理器
func NewStreamManager() *StreamManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamManager{
		acc:    api.NewStreamAccumulator(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 开始新的请求：清空上一次的输出并换一个新的上下文
func (m *StreamManager) Start(chunkCh <-chan api.GenerateChunk, errCh <-chan error) {
	m.acc.Reset()
	m.chunks = 0
	m.chunkCh = chunkCh
	m.errCh = errCh
	m.streaming = true
	m.lastChunkAt = time.Now()
}

// Add 追加一块输出
func (m *StreamManager) Add(chunk api.GenerateChunk) {
	m.acc.Add(chunk)
	m.chunks++
	m.lastChunkAt = time.Now()
}

// Finish 标记流结束，保留已经收到的内容
func (m *StreamManager) Finish() {
	m.streaming = false
	m.chunkCh = nil
	m.errCh = nil
}

func (m *StreamManager) IsStreaming() bool {
	return m.streaming
}

// Response 当前累积的文本
func (m *StreamManager) Response() string {
	return m.acc.String()
}

func (m *StreamManager) ChunkCount() int {
	return m.chunks
}

// IdleFor 距离上一块输出（或请求开始）的时间
func (m *StreamManager) IdleFor(now time.Time) time.Duration {
	return now.Sub(m.lastChunkAt)
}

// Channels 返回当前请求的通道，没有进行中的请求时为 nil
func (m *StreamManager) Channels() (<-chan api.GenerateChunk, <-chan error) {
	return m.chunkCh, m.errCh
}

// GetContext 获取上下文
func (m *StreamManager) GetContext() context.Context {
	return m.ctx
}

// Cancel 取消进行中的请求
func (m *StreamManager) Cancel() {
	m.cancel()
}

// ResetContext 重置上下文
func (m *StreamManager) ResetContext() {
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(context.Background())
}
