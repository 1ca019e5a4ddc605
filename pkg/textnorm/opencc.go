package textnorm

import (
	"fmt"
	"log"

	"github.com/liuzl/gocc"
)

// openCCConverter 是 TextConverter 的 OpenCC 实现。
// 中文社区导出的 MuseScore 谱面里 nm=/T: 字段常是繁体，
// 先折算成简体再做 ASCII 转写，避免直接丢字。
type openCCConverter struct {
	converter *gocc.OpenCC
	logger    *log.Logger
}

// NewOpenCCConverter 初始化并返回一个 OpenCC 转换器实例（t2s：繁转简）
func NewOpenCCConverter(logger *log.Logger) (TextConverter, error) {
	converter, err := gocc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenCC converter: %w", err)
	}
	logger.Println("OpenCC converter (t2s) initialized.")
	return &openCCConverter{converter: converter, logger: logger}, nil
}

// TradToSim 将繁体中文转换为简体，转换失败时返回原文
func (c *openCCConverter) TradToSim(text string) string {
	if c.converter == nil {
		return text
	}
	out, err := c.converter.Convert(text)
	if err != nil {
		c.logger.Printf("WARN: Failed to convert text %q from Traditional to Simplified: %v", text, err)
		return text
	}
	return out
}
