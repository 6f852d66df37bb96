package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// codeBlockPlaceholder 答案文本里嵌套代码块标记的替代符
// 三反引号会破坏外层JSON代码块的边界识别，修复时统一替换
const codeBlockPlaceholder = "⟪code⟫"

// fencedSpanPattern 成对的代码块标记及其内容
var fencedSpanPattern = regexp.MustCompile("```[^`]*```")

// ExtractJSONCandidate 从模型的自由文本响应中定位JSON候选串
// 纯函数，处理顺序：
//  1. 整体已是合法JSON则原样返回；
//  2. 存在```json代码块时，从第一个左大括号起按大括号深度匹配截取，
//     因为答案内容本身可能包含三反引号代码示例，不能按字符串切分；
//  3. 存在其他代码块时取第一个代码块体，剥掉语言标记行；
//  4. 都不存在时把整个文本当作候选。
func ExtractJSONCandidate(text string) string {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text
	}

	if idx := strings.Index(text, "```json"); idx >= 0 {
		block := text[idx+len("```json"):]
		if candidate, ok := matchBraces(block); ok {
			return candidate
		}
		// 大括号匹配失败时退回到按结束标记切分
		return strings.TrimSpace(strings.SplitN(block, "```", 2)[0])
	}

	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) >= 3 {
			block := strings.TrimSpace(parts[1])
			lines := strings.SplitN(block, "\n", 2)
			switch strings.TrimSpace(lines[0]) {
			case "json", "javascript", "js":
				if len(lines) == 2 {
					return strings.TrimSpace(lines[1])
				}
				return ""
			}
			return block
		}
	}

	return text
}

// matchBraces 从第一个左大括号起截取到与之配平的右大括号
func matchBraces(text string) (string, bool) {
	depth := 0
	start := -1

	for i, ch := range text {
		switch ch {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return strings.TrimSpace(text[start : i+1]), true
			}
		}
	}
	return "", false
}

// RepairNestedFences 修复JSON串中嵌套的代码块标记
// 能解析时走进cards数组把答案里的三反引号替换为占位符重新序列化；
// 不能解析时退化为正则剥除成对代码块和残留的反引号标记。
func RepairNestedFences(jsonStr string) string {
	if !strings.Contains(jsonStr, "```") {
		return jsonStr
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &data); err == nil {
		cards, ok := data["cards"].([]any)
		if !ok {
			return jsonStr
		}
		for _, item := range cards {
			card, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if answer, ok := card["a"].(string); ok {
				card["a"] = strings.ReplaceAll(answer, "```", codeBlockPlaceholder)
			}
		}
		if fixed, err := json.Marshal(data); err == nil {
			return string(fixed)
		}
		return jsonStr
	}

	fixed := fencedSpanPattern.ReplaceAllString(jsonStr, "")
	return strings.ReplaceAll(fixed, "```", "")
}

// ParseCards 从模型响应内容中恢复卡片列表
// 依次尝试直接解析、候选串定位、嵌套代码块修复；全部失败返回错误。
// 问题或答案缺失的条目被丢弃；保留条目的换行折叠为空格并去除首尾空白。
func ParseCards(content string) ([]Card, error) {
	candidate := ExtractJSONCandidate(content)

	var payload cardsPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		repaired := RepairNestedFences(candidate)
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return nil, err
		}
	}

	var cards []Card
	for _, entry := range payload.Cards {
		question := normalizeField(entry.Question)
		answer := normalizeField(entry.Answer)
		if question == "" || answer == "" {
			continue
		}
		cards = append(cards, Card{Question: question, Answer: answer})
	}
	return cards, nil
}

// cardsPayload 模型输出的卡片JSON结构
type cardsPayload struct {
	Cards []struct {
		Question string `json:"q"`
		Answer   string `json:"a"`
	} `json:"cards"`
}

// normalizeField 折叠换行并去除首尾空白
func normalizeField(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
