package context

import "strings"

// travelKeywords 旅行领域关键词：消息命中任意一个即触发 ×1.2 加权
var travelKeywords = []string{"trip", "travel", "route", "camping", "rv", "vehicle", "budget", "plan"}

// splitWords 将文本切分为小写词集合
func splitWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	return words
}

// hasTravelKeyword 判断消息是否包含旅行领域关键词
func hasTravelKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range travelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// lexicalOverlap 计算内容相对消息的词汇重叠度：
// |words(message) ∩ words(content)| / |words(message)|，上限 1.0。
// 消息包含旅行关键词时结果 ×1.2（加权后可超过 1.0）。
func lexicalOverlap(message, content string) float64 {
	messageWords := splitWords(message)
	if len(messageWords) == 0 {
		return 0
	}
	contentWords := splitWords(content)

	overlap := 0
	for w := range messageWords {
		if contentWords[w] {
			overlap++
		}
	}

	score := float64(overlap) / float64(len(messageWords))
	if score > 1.0 {
		score = 1.0
	}
	if hasTravelKeyword(message) {
		score *= 1.2
	}
	return score
}
