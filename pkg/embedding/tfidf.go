package embedding

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// TFIDFVectorizer TF-IDF 向量化器
//
// 本地降级方案：在外部嵌入 API 不可用时提供基于词频的向量化，
// 无需网络调用。向量维度等于词汇表大小，随 Fit 的语料变化。
type TFIDFVectorizer struct {
	vocabulary map[string]int // 词汇表：词 -> 索引
	idf        []float32      // 逆文档频率
	docCount   int            // 文档数量
	mu         sync.RWMutex
}

// NewTFIDFVectorizer 创建 TF-IDF 向量化器
func NewTFIDFVectorizer() *TFIDFVectorizer {
	return &TFIDFVectorizer{
		vocabulary: make(map[string]int),
		idf:        make([]float32, 0),
	}
}

// Tokenize 分词
//
// 小写化后按字母/数字边界切分。
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var currentWord strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			currentWord.WriteRune(r)
		} else if currentWord.Len() > 0 {
			tokens = append(tokens, currentWord.String())
			currentWord.Reset()
		}
	}

	if currentWord.Len() > 0 {
		tokens = append(tokens, currentWord.String())
	}

	return tokens
}

// Fit 训练向量化器
//
// 根据文档集合构建词汇表和计算 IDF。
func (v *TFIDFVectorizer) Fit(documents []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	wordDocCount := make(map[string]int)
	allWords := make(map[string]struct{})

	for _, doc := range documents {
		tokens := Tokenize(doc)
		seen := make(map[string]struct{})
		for _, token := range tokens {
			allWords[token] = struct{}{}
			if _, ok := seen[token]; !ok {
				wordDocCount[token]++
				seen[token] = struct{}{}
			}
		}
	}

	// 按字母顺序构建词汇表以保证向量维度一致
	words := make([]string, 0, len(allWords))
	for word := range allWords {
		words = append(words, word)
	}
	sort.Strings(words)

	v.vocabulary = make(map[string]int, len(words))
	for i, word := range words {
		v.vocabulary[word] = i
	}

	v.idf = make([]float32, len(words))
	n := float64(len(documents))
	for word, idx := range v.vocabulary {
		df := float64(wordDocCount[word])
		v.idf[idx] = float32(math.Log(n/df) + 1.0)
	}

	v.docCount = len(documents)
}

// Transform 将文本转换为 L2 归一化的 TF-IDF 向量
func (v *TFIDFVectorizer) Transform(text string) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.transformLocked(text)
}

// transformLocked 内部转换方法（调用者需持有锁）
func (v *TFIDFVectorizer) transformLocked(text string) []float32 {
	if len(v.vocabulary) == 0 {
		return nil
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return make([]float32, len(v.vocabulary))
	}

	tf := make(map[string]int)
	for _, token := range tokens {
		tf[token]++
	}

	vector := make([]float32, len(v.vocabulary))
	for word, count := range tf {
		if idx, ok := v.vocabulary[word]; ok {
			// TF = log(1 + count)
			tfValue := float32(math.Log(1 + float64(count)))
			vector[idx] = tfValue * v.idf[idx]
		}
	}

	normalize(vector)
	return vector
}

// Embed 实现 Embedder 接口
//
// 注意：向量仅在同一次 Fit 产生的词汇表内可比。
func (v *TFIDFVectorizer) Embed(_ context.Context, texts []string) ([][]float32, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = v.transformLocked(text)
	}
	return vectors, nil
}

// VocabularySize 返回词汇表大小
func (v *TFIDFVectorizer) VocabularySize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vocabulary)
}

// DocumentCount 返回训练文档数量
func (v *TFIDFVectorizer) DocumentCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.docCount
}

// Clear 清空向量化器
func (v *TFIDFVectorizer) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.vocabulary = make(map[string]int)
	v.idf = make([]float32, 0)
	v.docCount = 0
}

// normalize L2 归一化
func normalize(vector []float32) {
	var norm float32
	for _, val := range vector {
		norm += val * val
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for i := range vector {
			vector[i] /= norm
		}
	}
}

// 编译时接口检查
var _ Embedder = (*TFIDFVectorizer)(nil)
