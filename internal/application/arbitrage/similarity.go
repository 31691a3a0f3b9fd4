package arbitrage

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})`)
	scaledNumber = regexp.MustCompile(`^(\d+)([kmb])$`)

	stopWords = map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true,
		"of": true, "in": true, "to": true, "for": true, "is": true,
		"on": true, "at": true, "by": true, "be": true, "it": true,
		"will": true, "vs": true, "with": true, "this": true, "that": true,
		"does": true, "do": true, "before": true, "end": true,
	}

	// Synonyms collapse the wording differences seen between platforms
	// onto one canonical token.
	synonyms = map[string]string{
		"btc":      "bitcoin",
		"eth":      "ethereum",
		"hit":      "reach",
		"hits":     "reach",
		"reaches":  "reach",
		"reached":  "reach",
		"touch":    "reach",
		"wins":     "win",
		"won":      "win",
		"usd":      "dollar",
		"dollars":  "dollar",
		"us":       "usa",
		"potus":    "president",
		"election": "elected",
	}

	scale = map[string]int64{"k": 1_000, "m": 1_000_000, "b": 1_000_000_000}
)

// TitleSimilarity is the Dice coefficient over normalized title tokens.
// It is symmetric and in [0,1]; two titles with no tokens score 0.
func TitleSimilarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

// Tokens normalizes a question title into a token set: lower case, no
// punctuation or stop words, "$100K" and "$100,000" both become "100000",
// and known synonyms map to one form.
func Tokens(title string) map[string]bool {
	s := strings.ToLower(title)
	for {
		next := thousandsSep.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}

	tokens := make(map[string]bool)
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if stopWords[word] {
			continue
		}
		if m := scaledNumber.FindStringSubmatch(word); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				word = strconv.FormatInt(n*scale[m[2]], 10)
			}
		}
		if canon, ok := synonyms[word]; ok {
			word = canon
		}
		tokens[word] = true
	}
	return tokens
}
