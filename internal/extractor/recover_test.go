package extractor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtractJSONCandidate 测试JSON候选串定位
func TestExtractJSONCandidate(t *testing.T) {
	t.Run("valid json passthrough", func(t *testing.T) {
		raw := `{"cards":[{"q":"问","a":"答"}]}`
		assert.Equal(t, raw, ExtractJSONCandidate(raw))
	})

	t.Run("json fence with surrounding commentary", func(t *testing.T) {
		raw := "好的，以下是生成的卡片：\n```json\n{\"cards\":[{\"q\":\"问\",\"a\":\"答\"}]}\n```\n希望对你有帮助。"
		got := ExtractJSONCandidate(raw)
		assert.Equal(t, `{"cards":[{"q":"问","a":"答"}]}`, got)
	})

	t.Run("brace matching survives nested backticks in answer", func(t *testing.T) {
		inner := `{"cards":[{"q":"如何打印","a":"使用 ` + "```go\\nfmt.Println()\\n```" + ` 即可"}]}`
		raw := "```json\n" + inner + "\n```"
		got := ExtractJSONCandidate(raw)
		assert.Equal(t, inner, got)
		assert.True(t, json.Valid([]byte(got)))
	})

	t.Run("generic fence strips language tag", func(t *testing.T) {
		raw := "```js\n{\"cards\":[]}\n```"
		assert.Equal(t, `{"cards":[]}`, ExtractJSONCandidate(raw))
	})

	t.Run("generic fence without language tag", func(t *testing.T) {
		raw := "```\n{\"cards\":[]}\n```"
		assert.Equal(t, `{"cards":[]}`, ExtractJSONCandidate(raw))
	})

	t.Run("no fence uses whole text", func(t *testing.T) {
		raw := "  {\"cards\":[]} 附带说明 "
		assert.Equal(t, "{\"cards\":[]} 附带说明", ExtractJSONCandidate(raw))
	})
}

// TestRepairNestedFences 测试嵌套代码块修复
func TestRepairNestedFences(t *testing.T) {
	t.Run("no fences untouched", func(t *testing.T) {
		raw := `{"cards":[]}`
		assert.Equal(t, raw, RepairNestedFences(raw))
	})

	t.Run("parseable json replaces fences in answers", func(t *testing.T) {
		raw := `{"cards":[{"q":"问","a":"答案含` + "```" + `标记"}]}`
		fixed := RepairNestedFences(raw)

		var payload cardsPayload
		require.NoError(t, json.Unmarshal([]byte(fixed), &payload))
		require.Len(t, payload.Cards, 1)
		assert.Contains(t, payload.Cards[0].Answer, codeBlockPlaceholder)
		assert.NotContains(t, payload.Cards[0].Answer, "```")
	})

	t.Run("unparseable json strips fenced spans", func(t *testing.T) {
		raw := "{\"cards\": [ ```bad``` {\"q\":\"问\",\"a\":\"答\"} ```"
		fixed := RepairNestedFences(raw)
		assert.NotContains(t, fixed, "```")
	})
}

// TestParseCards 测试完整的卡片恢复流程
func TestParseCards(t *testing.T) {
	t.Run("direct json", func(t *testing.T) {
		cards, err := ParseCards(`{"cards":[{"q":"什么是接口","a":"方法签名的集合"}]}`)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "什么是接口", cards[0].Question)
	})

	t.Run("round trip through json fence with nested backticks", func(t *testing.T) {
		inner := `{"cards":[{"q":"如何写循环","a":"示例 ` + "```go\\nfor {}\\n```" + ` 这样"}]}`
		wrapped := "模型输出如下：\n```json\n" + inner + "\n```"

		direct, err := ParseCards(inner)
		require.NoError(t, err)
		fromFence, err := ParseCards(wrapped)
		require.NoError(t, err)
		assert.Equal(t, direct, fromFence, "代码块包裹不应改变解析结果")
	})

	t.Run("entries missing question or answer dropped", func(t *testing.T) {
		cards, err := ParseCards(`{"cards":[{"q":"只有问题"},{"a":"只有答案"},{"q":"完整","a":"条目"},{"q":"  ","a":"空白问题"}]}`)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "完整", cards[0].Question)
	})

	t.Run("newlines collapsed to spaces", func(t *testing.T) {
		cards, err := ParseCards(`{"cards":[{"q":"多行\n问题","a":"多行\n答案"}]}`)
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, "多行 问题", cards[0].Question)
		assert.Equal(t, "多行 答案", cards[0].Answer)
	})

	t.Run("missing cards array yields empty", func(t *testing.T) {
		cards, err := ParseCards(`{"other":true}`)
		require.NoError(t, err)
		assert.Empty(t, cards)
	})

	t.Run("unrecoverable text errors", func(t *testing.T) {
		_, err := ParseCards("这不是JSON，也没有代码块")
		assert.Error(t, err)
	})
}
