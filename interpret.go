package speechgate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultMinConfidence is the lowest alternative confidence the cloud interpreter accepts.
const DefaultMinConfidence = 0.70

// Dictionary is the read-only set of trigger words. Lookups are case-sensitive.
type Dictionary struct {
	suffix string
	words  map[string]struct{}
}

// NewDictionary keeps the words that end in suffix.
func NewDictionary(suffix string, words ...string) *Dictionary {
	d := &Dictionary{suffix: suffix, words: make(map[string]struct{})}
	for _, w := range words {
		if w != "" && strings.HasSuffix(w, suffix) {
			d.words[w] = struct{}{}
		}
	}
	return d
}

// LoadDictionary reads a whitespace-separated word list and keeps the words ending in suffix.
func LoadDictionary(r io.Reader, suffix string) (*Dictionary, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	var words []string
	for sc.Scan() {
		words = append(words, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("speechgate: read dictionary: %w", err)
	}
	return NewDictionary(suffix, words...), nil
}

// LoadDictionaryFile is LoadDictionary over a file.
func LoadDictionaryFile(path, suffix string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("speechgate: open dictionary: %w", err)
	}
	defer f.Close()

	return LoadDictionary(f, suffix)
}

// Contains reports whether w is a trigger word.
func (d *Dictionary) Contains(w string) bool {
	if d == nil {
		return false
	}
	_, ok := d.words[w]
	return ok
}

// Len returns the number of trigger words.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.words)
}

// Suffix returns the suffix every trigger word ends in.
func (d *Dictionary) Suffix() string {
	if d == nil {
		return ""
	}
	return d.suffix
}

// Interpreter reduces an engine transcription to the first trigger word, if any.
type Interpreter interface {
	Interpret(t Transcription) (string, bool)
}

// CloudInterpreter scans results, alternatives and words in order, skipping
// alternatives below MinConfidence.
type CloudInterpreter struct {
	Words         *Dictionary
	MinConfidence float64
}

func (c CloudInterpreter) Interpret(t Transcription) (string, bool) {
	for _, res := range t.Results {
		for _, alt := range res.Alternatives {
			if alt.Confidence < c.MinConfidence {
				continue
			}
			for _, w := range alt.Words {
				if c.Words.Contains(w.Word) {
					return w.Word, true
				}
			}
		}
	}
	return "", false
}

// LocalInterpreter scans whitespace-delimited tokens of the recognized text.
type LocalInterpreter struct {
	Words *Dictionary
}

func (l LocalInterpreter) Interpret(t Transcription) (string, bool) {
	for _, tok := range strings.Fields(t.Text) {
		if l.Words.Contains(tok) {
			return tok, true
		}
	}
	return "", false
}
