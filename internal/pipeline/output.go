package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ASCII-S/Memoride-Prototype/internal/extractor"
)

// csvHeader 输出CSV的表头
var csvHeader = []string{"问题", "答案"}

// modelNameSanitizer 模型名里在文件名中非法的字符
var modelNameSanitizer = strings.NewReplacer(
	":", "-",
	"/", "-",
	"\\", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// SanitizeModelName 把模型名转换为可用于文件名的形式
func SanitizeModelName(model string) string {
	return modelNameSanitizer.Replace(model)
}

// OutputFileName 计算源文件对应的输出文件名
// 同一源文件和模型总是得到同一个输出名，重复运行覆盖旧结果
func OutputFileName(sourcePath, model string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s-%s-学习卡片.csv", base, SanitizeModelName(model))
}

// createWithHeader 创建输出文件并写入表头
func createWithHeader(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %v", err)
	}
	writer.Flush()
	return writer.Error()
}

// appendCards 以追加方式写入一个片段的卡片
// 每个片段独立打开和关闭文件，中途取消或崩溃时已写入的行仍然有效
func appendCards(path string, cards []extractor.Card) error {
	if len(cards) == 0 {
		return nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, card := range cards {
		if err := writer.Write([]string{card.Question, card.Answer}); err != nil {
			return fmt.Errorf("failed to write card: %v", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
