package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect 读取完整个事件通道
func collect(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

// TestNormalizeStreamOpenAI 测试OpenAI兼容格式的流解析
func TestNormalizeStreamOpenAI(t *testing.T) {
	t.Run("delta content and done sentinel", func(t *testing.T) {
		raw := strings.Join([]string{
			`data: {"model":"deepseek-chat","created":1718000000,"choices":[{"delta":{"content":"你好"},"finish_reason":null}]}`,
			`data: {"model":"deepseek-chat","created":1718000000,"choices":[{"delta":{"content":"世界"},"finish_reason":null}]}`,
			`data: [DONE]`,
		}, "\n")

		events := collect(NormalizeStream(strings.NewReader(raw), true))
		require.Len(t, events, 3)

		assert.Equal(t, "你好", events[0].Response)
		assert.Equal(t, "deepseek-chat", events[0].Model)
		assert.False(t, events[0].Done)
		assert.Equal(t, "世界", events[1].Response)

		// 最后一个事件必须是结束标记，之后没有任何事件
		last := events[len(events)-1]
		assert.True(t, last.Done)
		assert.Empty(t, last.Response)
	})

	t.Run("finish_reason maps to done", func(t *testing.T) {
		raw := `data: {"model":"m","choices":[{"delta":{},"finish_reason":"stop"}]}`
		events := collect(NormalizeStream(strings.NewReader(raw), true))
		require.Len(t, events, 1)
		assert.True(t, events[0].Done)
	})

	t.Run("non-data lines ignored", func(t *testing.T) {
		raw := ": keepalive\nevent: ping\ndata: [DONE]"
		events := collect(NormalizeStream(strings.NewReader(raw), true))
		require.Len(t, events, 1)
		assert.True(t, events[0].Done)
	})

	t.Run("malformed line yields error and stream continues", func(t *testing.T) {
		raw := "data: {not json}\ndata: [DONE]"
		events := collect(NormalizeStream(strings.NewReader(raw), true))
		require.Len(t, events, 2)
		assert.NotEmpty(t, events[0].Err)
		assert.True(t, events[1].Done)
	})

	t.Run("non-stream message content extracted", func(t *testing.T) {
		raw := `data: {"model":"m","choices":[{"message":{"content":"整段回答"},"finish_reason":null}]}`
		events := collect(NormalizeStream(strings.NewReader(raw), true))
		require.Len(t, events, 1)
		assert.Equal(t, "整段回答", events[0].Response)
		assert.True(t, events[0].Done)
	})
}

// TestNormalizeStreamNative 测试Ollama原生格式的流解析
func TestNormalizeStreamNative(t *testing.T) {
	t.Run("data-prefixed json", func(t *testing.T) {
		raw := `data: {"response":"hi","model":"llama3","created_at":"2024-01-01T00:00:00Z","done":false}`
		events := collect(NormalizeStream(strings.NewReader(raw), false))
		require.Len(t, events, 1)
		assert.Equal(t, "hi", events[0].Response)
		assert.Equal(t, "llama3", events[0].Model)
	})

	t.Run("bare json line", func(t *testing.T) {
		raw := `{"response":"chunk","done":true}`
		events := collect(NormalizeStream(strings.NewReader(raw), false))
		require.Len(t, events, 1)
		assert.Equal(t, "chunk", events[0].Response)
		assert.True(t, events[0].Done)
	})

	t.Run("non-json line wrapped as text delta", func(t *testing.T) {
		raw := "plain text output"
		events := collect(NormalizeStream(strings.NewReader(raw), false))
		require.Len(t, events, 1)
		assert.Equal(t, "plain text output", events[0].Response)
		assert.False(t, events[0].Done)
	})

	t.Run("blank lines skipped", func(t *testing.T) {
		raw := "\n\n{\"response\":\"a\",\"done\":false}\n\n"
		events := collect(NormalizeStream(strings.NewReader(raw), false))
		require.Len(t, events, 1)
	})
}
