package trend

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldReplacer handles letters that NFD does not decompose.
var foldReplacer = strings.NewReplacer("ß", "ss", "æ", "ae", "ø", "o", "œ", "oe", "ł", "l")

// normalize lower-cases, folds accents and reduces text to space separated word tokens,
// padded with a leading and trailing space so keywords match on word boundaries.
func normalize(s string) string {
	if s == "" {
		return " "
	}
	s = foldReplacer.Replace(strings.ToLower(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return " "
	}
	return " " + strings.Join(fields, " ") + " "
}

// keywordSet matches whole words or phrases against normalized text in one pass.
type keywordSet struct {
	words   []string
	matcher *ahocorasick.Matcher
}

func newKeywordSet(words []string) *keywordSet {
	seen := make(map[string]bool, len(words))
	ks := &keywordSet{}
	for _, w := range words {
		n := strings.TrimSpace(normalize(w))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		ks.words = append(ks.words, n)
	}
	if len(ks.words) == 0 {
		return ks
	}
	padded := make([]string, len(ks.words))
	for i, w := range ks.words {
		padded[i] = " " + w + " "
	}
	ks.matcher = ahocorasick.NewStringMatcher(padded)
	return ks
}

// hits returns the distinct keywords found in text, sorted. text must come from normalize.
func (k *keywordSet) hits(text string) []string {
	if k == nil || k.matcher == nil {
		return nil
	}
	idx := k.matcher.MatchThreadSafe([]byte(text))
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		if i < len(k.words) {
			out = append(out, k.words[i])
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func (k *keywordSet) count(text string) int {
	return len(k.hits(text))
}

func (k *keywordSet) any(text string) bool {
	return k.count(text) > 0
}

func (k *keywordSet) size() int {
	if k == nil {
		return 0
	}
	return len(k.words)
}

// nonASCIIShare returns the share of letters and digits outside ASCII.
func nonASCIIShare(s string) float64 {
	var total, foreign int
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		total++
		if r > unicode.MaxASCII {
			foreign++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(foreign) / float64(total)
}

// upperShare returns the share of upper case letters among cased letters.
func upperShare(s string) float64 {
	var cased, upper int
	for _, r := range s {
		if unicode.IsUpper(r) {
			cased++
			upper++
		} else if unicode.IsLower(r) {
			cased++
		}
	}
	if cased == 0 {
		return 0
	}
	return float64(upper) / float64(cased)
}

// containsPhrase reports whether the normalized phrase occurs as whole words in normalized text.
func containsPhrase(text, phrase string) bool {
	p := strings.TrimSpace(normalize(phrase))
	if p == "" {
		return false
	}
	return strings.Contains(text, " "+p+" ")
}
