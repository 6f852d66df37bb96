package backend

import "encoding/json"

// ResponseShape 响应负载的形状分类
// 不同后端家族返回的JSON结构不同，提取内容前先分类
type ResponseShape int

const (
	// ShapeOpenAIChat choices[0].message.content 形式
	ShapeOpenAIChat ResponseShape = iota
	// ShapeOpenAICompletion choices[0].text 形式
	ShapeOpenAICompletion
	// ShapeFlatResponse 顶层response字段形式（Ollama原生）
	ShapeFlatResponse
	// ShapeUnknown 无法识别，内容为整个负载的字符串形式
	ShapeUnknown
)

// String 返回形状名称
func (s ResponseShape) String() string {
	switch s {
	case ShapeOpenAIChat:
		return "openai_chat"
	case ShapeOpenAICompletion:
		return "openai_completion"
	case ShapeFlatResponse:
		return "flat_response"
	default:
		return "unknown"
	}
}

// ClassifyResponse 识别响应负载形状并提取文本内容
// 任何解析失败都退化为ShapeUnknown加原始字符串，从不返回错误
func ClassifyResponse(raw json.RawMessage) (ResponseShape, string) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ShapeUnknown, string(raw)
	}

	if choices, ok := payload["choices"].([]any); ok && len(choices) > 0 {
		choice, ok := choices[0].(map[string]any)
		if !ok {
			return ShapeUnknown, string(raw)
		}
		if msg, ok := choice["message"].(map[string]any); ok {
			if content, ok := msg["content"].(string); ok {
				return ShapeOpenAIChat, content
			}
		}
		if text, ok := choice["text"].(string); ok {
			return ShapeOpenAICompletion, text
		}
		// choices存在但形状未知，退化为choice的字符串形式
		b, err := json.Marshal(choice)
		if err != nil {
			return ShapeUnknown, string(raw)
		}
		return ShapeUnknown, string(b)
	}

	if resp, ok := payload["response"].(string); ok {
		return ShapeFlatResponse, resp
	}

	return ShapeUnknown, string(raw)
}
