package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentiment is the polarity/subjectivity pair produced by the lexicon
// scorer. Polarity is in [-1,1], subjectivity in [0,1].
type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

type SentimentService interface {
	Analyze(text string) Sentiment
}

type sentimentService struct{}

func NewSentimentService() SentimentService {
	return &sentimentService{}
}

var positiveWords = map[string]float64{
	"good": 0.6, "great": 0.8, "awesome": 1.0, "amazing": 0.9,
	"wonderful": 0.9, "fantastic": 0.9, "excellent": 0.9, "love": 0.8,
	"loved": 0.8, "perfect": 0.9, "happy": 0.8, "excited": 0.7,
	"nice": 0.5, "fun": 0.6, "glad": 0.6, "thanks": 0.4, "thank": 0.4,
	"enjoy": 0.6, "enjoyed": 0.6, "best": 0.9, "better": 0.4,
	"cool": 0.5, "beautiful": 0.8, "win": 0.6, "won": 0.6,
}

var negativeWords = map[string]float64{
	"bad": 0.6, "terrible": 0.9, "awful": 0.9, "horrible": 0.9,
	"hate": 0.8, "hated": 0.8, "worst": 1.0, "worse": 0.5,
	"sad": 0.7, "angry": 0.7, "annoyed": 0.5, "annoying": 0.5,
	"stressed": 0.7, "overwhelmed": 0.8, "anxious": 0.7, "worried": 0.6,
	"frustrated": 0.7, "tired": 0.5, "exhausted": 0.7, "fail": 0.6,
	"failed": 0.6, "broken": 0.5, "problem": 0.4, "wrong": 0.4,
}

var intensifiers = map[string]float64{
	"very": 1.3, "really": 1.3, "so": 1.2, "extremely": 1.5,
	"totally": 1.3, "absolutely": 1.4, "quite": 1.1, "super": 1.4,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "dont": true, "don't": true,
	"cant": true, "can't": true, "isnt": true, "isn't": true,
	"wasnt": true, "wasn't": true,
}

// Analyze scores free text. Empty input gets the neutral fallback
// {0, 0.5}.
func (s *sentimentService) Analyze(text string) Sentiment {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Sentiment{Polarity: 0, Subjectivity: 0.5}
	}

	var (
		total   float64
		scored  int
		modifer = 1.0
		negate  = false
	)
	for _, tok := range tokens {
		if m, ok := intensifiers[tok]; ok {
			modifer = m
			continue
		}
		if negators[tok] {
			negate = true
			continue
		}

		var score float64
		if w, ok := positiveWords[tok]; ok {
			score = w
		} else if w, ok := negativeWords[tok]; ok {
			score = -w
		} else {
			modifer = 1.0
			negate = false
			continue
		}

		score *= modifer
		if negate {
			score = -score
		}
		total += score
		scored++
		modifer = 1.0
		negate = false
	}

	if scored == 0 {
		return Sentiment{Polarity: 0, Subjectivity: 0}
	}

	polarity := clamp(total/float64(scored), -1, 1)
	subjectivity := clamp(float64(scored)/float64(len(tokens)), 0, 1)
	return Sentiment{Polarity: polarity, Subjectivity: subjectivity}
}

// Tokenize lowercases and splits on non-letter/digit runes, keeping
// in-word apostrophes so contractions survive.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
