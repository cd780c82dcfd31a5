package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// Chunker splits lesson text into sentence-bounded windows of at most size
// runes. Every window after the first is seeded with the trailing overlap
// runes of the previous chunk, so a chunk may reach size+overlap+1 runes.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunk texts for one body of text.
func (c *Chunker) Split(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	var pieces []string
	for _, sentence := range splitSentences(normalized) {
		if utf8.RuneCountInString(sentence) > c.size {
			pieces = append(pieces, hardSplit(sentence, c.size)...)
			continue
		}
		pieces = append(pieces, sentence)
	}

	windows := c.pack(pieces)
	chunks := make([]string, 0, len(windows))
	for i, w := range windows {
		if i == 0 {
			chunks = append(chunks, w)
			continue
		}
		if seed := overlapTail(chunks[i-1], c.overlap); seed != "" {
			w = seed + " " + w
		}
		chunks = append(chunks, w)
	}
	return chunks
}

// pack joins pieces greedily into windows of at most c.size runes.
func (c *Chunker) pack(pieces []string) []string {
	var (
		windows []string
		cur     strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			windows = append(windows, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+1+n > c.size {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()
	return windows
}

// overlapTail returns at most n trailing runes of s, snapped forward to a
// word start so the seed does not begin mid-word.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return strings.TrimSpace(s)
	}
	start := len(runes) - n
	if !unicode.IsSpace(runes[start-1]) {
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}

// hardSplit breaks a sentence longer than size, preferring the last space in
// the second half of each window and cutting mid-word otherwise.
func hardSplit(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > size {
		cut := size
		for i := size - 1; i >= size/2 && i > 0; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		out = append(out, rest)
	}
	return out
}

// splitSentences breaks normalized text after '.', '!' or '?' when the next
// word starts with an upper-case letter. Abbreviations such as "Dr." or "e.g."
// do not end a sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var (
		out   []string
		start int
	)
	for i := 0; i < len(runes)-2; i++ {
		switch runes[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if runes[i+1] != ' ' || !unicode.IsUpper(runes[i+2]) {
			continue
		}
		if runes[i] == '.' && isAbbreviation(runes[start:i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 2
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

// titleAbbreviations end with a period but never end a sentence.
var titleAbbreviations = map[string]bool{
	"Mr.": true, "Mrs.": true, "Ms.": true, "Dr.": true,
	"St.": true, "Jr.": true, "Sr.": true, "Prof.": true,
}

func isAbbreviation(sentence []rune) bool {
	wordStart := len(sentence) - 1
	for wordStart > 0 && sentence[wordStart-1] != ' ' {
		wordStart--
	}
	word := sentence[wordStart:]
	if titleAbbreviations[string(word)] {
		return true
	}
	// Dotted abbreviations: "e.g.", "i.e.", "U.S."
	if len(word) >= 4 && word[len(word)-3] == '.' && isWordRune(word[len(word)-2]) && isWordRune(word[len(word)-4]) {
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
