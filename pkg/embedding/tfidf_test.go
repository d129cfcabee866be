package embedding

import (
	"context"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"english", "hello world", []string{"hello", "world"}},
		{"with numbers", "test123", []string{"test123"}},
		{"with punctuation", "hello, world!", []string{"hello", "world"}},
		{"uppercase", "Hello World", []string{"hello", "world"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			if len(tokens) != len(tt.expected) {
				t.Fatalf("expected %d tokens, got %d: %v", len(tt.expected), len(tokens), tokens)
			}
			for i, token := range tokens {
				if token != tt.expected[i] {
					t.Errorf("token %d: expected %q, got %q", i, tt.expected[i], token)
				}
			}
		})
	}
}

func TestFitAndTransform(t *testing.T) {
	v := NewTFIDFVectorizer()
	docs := []string{
		"camping trip to the mountains",
		"budget planning for fuel costs",
		"camping gear checklist",
	}
	v.Fit(docs)

	if v.VocabularySize() == 0 {
		t.Fatal("expected non-empty vocabulary")
	}
	if v.DocumentCount() != 3 {
		t.Errorf("expected 3 documents, got %d", v.DocumentCount())
	}

	vec := v.Transform("camping trip")
	if len(vec) != v.VocabularySize() {
		t.Errorf("expected vector of vocabulary size %d, got %d", v.VocabularySize(), len(vec))
	}

	// related document should score higher than an unrelated one
	campingVec := v.Transform(docs[0])
	budgetVec := v.Transform(docs[1])
	if CosineSimilarity(vec, campingVec) <= CosineSimilarity(vec, budgetVec) {
		t.Error("expected camping query closer to camping document")
	}
}

func TestTransformBeforeFit(t *testing.T) {
	v := NewTFIDFVectorizer()
	if vec := v.Transform("anything"); vec != nil {
		t.Errorf("expected nil vector before fit, got %v", vec)
	}
}

func TestTFIDFEmbedInterface(t *testing.T) {
	v := NewTFIDFVectorizer()
	v.Fit([]string{"one document here", "another document there"})

	vectors, err := v.Embed(context.Background(), []string{"one here", "another there"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
}

func TestClear(t *testing.T) {
	v := NewTFIDFVectorizer()
	v.Fit([]string{"some document"})
	v.Clear()

	if v.VocabularySize() != 0 || v.DocumentCount() != 0 {
		t.Error("expected empty vectorizer after clear")
	}
}
