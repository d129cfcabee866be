package context

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter 定义 Token 计数接口。
type TokenCounter interface {
	// Count 返回给定文本的 Token 数量。
	Count(text string) int
}

// WordCounter 基于词数的 Token 估算：词数 × 1.3。
//
// 这是流水线的默认计数器，预算打包和置信度计算都以它为基准。
type WordCounter struct{}

// NewWordCounter 创建词数估算计数器。
func NewWordCounter() *WordCounter {
	return &WordCounter{}
}

// Count 返回估算的 Token 数量（词数 × 1.3，向下取整）。
func (c *WordCounter) Count(text string) int {
	return int(float64(len(strings.Fields(text))) * 1.3)
}

// TiktokenCounter 使用 tiktoken 实现精确的 Token 计数。
//
// 用于需要和真实模型计费对齐的场景；注意切换计数器会
// 改变预算打包的边界行为。
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

// TiktokenOption 配置 TiktokenCounter。
type TiktokenOption func(*TiktokenCounter)

// WithModel 设置 Token 编码使用的模型。
func WithModel(model string) TiktokenOption {
	return func(c *TiktokenCounter) {
		c.model = model
	}
}

// NewTiktokenCounter 创建新的 TiktokenCounter。
// 默认使用 cl100k_base 编码（GPT-4、GPT-4o 等使用）。
func NewTiktokenCounter(opts ...TiktokenOption) (*TiktokenCounter, error) {
	c := &TiktokenCounter{
		model: "gpt-4o",
	}

	for _, opt := range opts {
		opt(c)
	}

	encoding, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// 降级到 cl100k_base 编码
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	c.encoding = encoding
	return c, nil
}

// Count 返回给定文本的 Token 数量。
func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return NewWordCounter().Count(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// 编译时接口检查
var _ TokenCounter = (*WordCounter)(nil)
var _ TokenCounter = (*TiktokenCounter)(nil)
