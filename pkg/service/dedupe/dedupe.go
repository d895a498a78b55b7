package dedupe

import (
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultThreshold is the word-overlap similarity at which two items count as duplicates
const DefaultThreshold = 0.8

// Parts of speech that carry no content for similarity purposes
var functionPOS = map[string]struct{}{
	"助詞":   {},
	"助動詞":  {},
	"記号":   {},
	"フィラー": {},
}

// Deduplicator removes near-duplicate list entries using Jaccard similarity over word sets.
// Japanese text is segmented with kagome; other text is split on whitespace.
// It is safe for concurrent use.
type Deduplicator struct {
	tok       *tokenizer.Tokenizer
	threshold float64
}

type Option func(*Deduplicator)

func WithThreshold(threshold float64) Option {
	return func(d *Deduplicator) {
		d.threshold = threshold
	}
}

func New(opts ...Option) (*Deduplicator, error) {
	tok, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize tokenizer")
	}

	d := &Deduplicator{
		tok:       tok,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dedupe keeps the first of every group of similar items, preserving order.
// Items are trimmed and blank items dropped. The result is never nil.
func (d *Deduplicator) Dedupe(items []string) []string {
	type kept struct {
		norm  string
		words map[string]struct{}
	}

	out := make([]string, 0, len(items))
	seen := make([]kept, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cur := kept{norm: strings.ToLower(item), words: d.words(item)}

		duplicate := false
		for _, k := range seen {
			if k.norm == cur.norm || jaccard(k.words, cur.words) >= d.threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seen = append(seen, cur)
		out = append(out, item)
	}
	return out
}

// Similarity returns |A∩B| / |A∪B| over the word sets of a and b.
// Case-insensitively equal strings always have similarity 1.
func (d *Deduplicator) Similarity(a, b string) float64 {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if strings.EqualFold(a, b) {
		return 1
	}
	return jaccard(d.words(a), d.words(b))
}

func (d *Deduplicator) words(s string) map[string]struct{} {
	s = strings.ToLower(s)
	set := make(map[string]struct{})

	if !containsJapanese(s) {
		for _, w := range strings.Fields(s) {
			w = strings.TrimFunc(w, unicode.IsPunct)
			if w != "" {
				set[w] = struct{}{}
			}
		}
		return set
	}

	for _, token := range d.tok.Tokenize(s) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		pos := token.POS()
		if len(pos) > 0 {
			if _, skip := functionPOS[pos[0]]; skip {
				continue
			}
		}

		w := token.Surface
		if base, ok := token.BaseForm(); ok && base != "" && base != "*" {
			w = base
		}
		w = strings.TrimSpace(w)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func containsJapanese(text string) bool {
	for _, r := range text {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}
