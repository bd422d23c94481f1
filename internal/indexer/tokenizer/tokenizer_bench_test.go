package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var benchTexts = map[string]string{
	"short": "How do I reset my password after the account was locked?",
	"medium": `Configure the search service by editing the YAML file. The cache section
        selects an in-memory LRU or Redis; the index section sets how long a snapshot
        stays fresh before the next query rebuilds it from the corpus directory.`,
	"long": strings.Repeat(`Troubleshooting guide: when searches return stale results, check
        that the invalidation topic is reachable and that the watcher is enabled for the
        corpus directory. Rebuilds are logged with their generation and duration. `, 30),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	baseWord := "document relevance search index ranking "
	for _, size := range []int{10, 100, 500, 1000, 5000} {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeN_Capped(b *testing.B) {
	text := benchTexts["long"]
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = TokenizeN(text, 100)
	}
}

func BenchmarkIsStopWord(b *testing.B) {
	words := []string{"the", "password", "with", "configuration", "and", "redis"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = IsStopWord(words[i%len(words)])
	}
}
