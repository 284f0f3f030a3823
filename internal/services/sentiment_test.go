package services

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSentimentAnalyze(t *testing.T) {
	svc := NewSentimentService()

	cases := []struct {
		name         string
		text         string
		wantPolarity string // "pos", "neg", "zero"
	}{
		{name: "positive", text: "this is great, I love it", wantPolarity: "pos"},
		{name: "negative", text: "terrible day, everything is broken", wantPolarity: "neg"},
		{name: "neutral words only", text: "the meeting is at noon", wantPolarity: "zero"},
		{name: "intensified positive", text: "really awesome work", wantPolarity: "pos"},
		{name: "negated positive", text: "not happy about this", wantPolarity: "neg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.Analyze(tc.text)
			if got.Polarity < -1 || got.Polarity > 1 {
				t.Fatalf("polarity out of range: %v", got.Polarity)
			}
			if got.Subjectivity < 0 || got.Subjectivity > 1 {
				t.Fatalf("subjectivity out of range: %v", got.Subjectivity)
			}
			switch tc.wantPolarity {
			case "pos":
				if got.Polarity <= 0 {
					t.Fatalf("want positive polarity, got %v", got.Polarity)
				}
			case "neg":
				if got.Polarity >= 0 {
					t.Fatalf("want negative polarity, got %v", got.Polarity)
				}
			case "zero":
				if got.Polarity != 0 {
					t.Fatalf("want zero polarity, got %v", got.Polarity)
				}
			}
		})
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
	}{
		{name: "ascii under cap", in: "short", max: 50},
		{name: "ascii at cap", in: strings.Repeat("x", 50), max: 50},
		{name: "emoji mid-rune cut", in: strings.Repeat("🙂", 20), max: 50},
		{name: "two-byte runes", in: strings.Repeat("é", 40), max: 51},
		{name: "zero cap", in: "🙂", max: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := truncate(tc.in, tc.max)
			if len(got) > tc.max && tc.max > 0 {
				t.Fatalf("length %d exceeds cap %d", len(got), tc.max)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncation produced invalid UTF-8: %q", got)
			}
			if !strings.HasPrefix(tc.in, got) {
				t.Fatalf("result %q is not a prefix of input", got)
			}
		})
	}
}

func TestSentimentEmptyInputFallback(t *testing.T) {
	svc := NewSentimentService()
	got := svc.Analyze("   ")
	if got.Polarity != 0 || got.Subjectivity != 0.5 {
		t.Fatalf("want neutral fallback {0, 0.5}, got %+v", got)
	}
}
