package backend

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const ssePrefix = "data: "

// StreamEvent 规范化后的流式响应事件
// Err非空表示该行无法解析，流本身继续
type StreamEvent struct {
	Response  string // 内容增量
	Model     string // 模型名称
	CreatedAt string // 创建时间
	Done      bool   // 流结束标记
	Err       string // 行级错误信息
}

// NormalizeStream 将后端的行式流响应转换为统一的事件序列
// openaiCompatible为true时按OpenAI SSE格式解析，否则按Ollama原生格式解析。
// 返回的通道在流读完后关闭，不可重复消费。
func NormalizeStream(r io.Reader, openaiCompatible bool) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			if openaiCompatible {
				for _, ev := range parseOpenAILine(line) {
					events <- ev
				}
			} else {
				events <- parseNativeLine(line)
			}
		}
	}()

	return events
}

// parseOpenAILine 解析OpenAI兼容格式的SSE行
// 非data:前缀的行直接忽略；一行可能产生零个或一个事件
func parseOpenAILine(line string) []StreamEvent {
	if !strings.HasPrefix(line, ssePrefix) {
		return nil
	}
	data := strings.TrimSpace(line[len(ssePrefix):])

	if data == "[DONE]" {
		return []StreamEvent{{Done: true}}
	}

	var payload struct {
		Model   string `json:"model"`
		Created any    `json:"created"`
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return []StreamEvent{{Err: fmt.Sprintf("invalid JSON in stream: %v, raw: %s", err, data)}}
	}

	if len(payload.Choices) == 0 {
		return nil
	}
	choice := payload.Choices[0]

	created := ""
	if payload.Created != nil {
		created = fmt.Sprint(payload.Created)
	}

	if choice.Delta.Content != "" {
		return []StreamEvent{{
			Response:  choice.Delta.Content,
			Model:     payload.Model,
			CreatedAt: created,
			Done:      choice.FinishReason != nil,
		}}
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		return []StreamEvent{{Done: true}}
	}
	// 非流式响应混入流中时也能提取
	if choice.Message.Content != "" {
		return []StreamEvent{{
			Response:  choice.Message.Content,
			Model:     payload.Model,
			CreatedAt: created,
			Done:      true,
		}}
	}
	return nil
}

// parseNativeLine 解析Ollama原生格式的流式行
func parseNativeLine(line string) StreamEvent {
	data := line
	if strings.HasPrefix(line, ssePrefix) {
		data = strings.TrimSpace(line[len(ssePrefix):])
		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &nativePayload{&ev}); err != nil {
			return StreamEvent{Err: fmt.Sprintf("invalid JSON in stream: %v, raw: %s", err, data)}
		}
		return ev
	}

	// 整行尝试按JSON解析，失败则作为纯文本增量返回
	var ev StreamEvent
	if err := json.Unmarshal([]byte(data), &nativePayload{&ev}); err != nil {
		return StreamEvent{Response: data, Done: false}
	}
	return ev
}

// nativePayload Ollama原生流式响应的解码辅助
type nativePayload struct {
	ev *StreamEvent
}

// UnmarshalJSON 将原生响应字段映射到StreamEvent
func (p *nativePayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		Response  string `json:"response"`
		Model     string `json:"model"`
		CreatedAt string `json:"created_at"`
		Done      bool   `json:"done"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ev.Response = raw.Response
	p.ev.Model = raw.Model
	p.ev.CreatedAt = raw.CreatedAt
	p.ev.Done = raw.Done
	return nil
}
