package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
)

// Suggestion is one unsolicited hint surfaced alongside a reply.
type Suggestion struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"` // high | medium | low
}

const maxSuggestions = 5

var priorityWeight = map[string]int{"high": 3, "medium": 2, "low": 1}

var deadlineKeywords = []string{"deadline", "due", "submit", "deliver", "finish by", "due date"}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|next week)\b`),
}

var codingKeywords = []string{"code", "coding", "bug", "debug", "function", "compile", "error", "refactor", "deploy"}

var learningKeywords = []string{"learn", "learning", "study", "course", "tutorial", "practice", "understand"}

type ProactiveService interface {
	// Suggest runs the heuristic battery against recent history and
	// the current message/emotion snapshot. Best-effort: any internal
	// failure yields an empty list.
	Suggest(ctx context.Context, userID uint, message string, scores EmotionScores) []Suggestion
}

type proactiveService struct {
	db          *gorm.DB
	log         *logger.Logger
	messageRepo repos.MessageRepo
	now         func() time.Time
}

func NewProactiveService(db *gorm.DB, log *logger.Logger, messageRepo repos.MessageRepo) ProactiveService {
	return &proactiveService{
		db:          db,
		log:         log.With("service", "ProactiveService"),
		messageRepo: messageRepo,
		now:         time.Now,
	}
}

func (ps *proactiveService) Suggest(ctx context.Context, userID uint, message string, scores EmotionScores) []Suggestion {
	var suggestions []Suggestion
	now := ps.now()

	// Work-session length: heavy recent traffic means time for a break.
	if count, err := ps.messageRepo.CountUserMessagesSince(ctx, nil, userID, now.Add(-2*time.Hour)); err == nil && count >= 20 {
		suggestions = append(suggestions, Suggestion{
			Type:     "break",
			Message:  "You've been at this for a while. A short break could help you reset.",
			Priority: "high",
		})
	}

	suggestions = append(suggestions, ps.deadlineSuggestions(ctx, userID, message, now)...)

	lower := strings.ToLower(message)
	if containsAny(lower, codingKeywords) {
		suggestions = append(suggestions, Suggestion{
			Type:     "coding",
			Message:  "Stuck on code? Try isolating the failing case or walking through it line by line.",
			Priority: "medium",
		})
	}
	if containsAny(lower, learningKeywords) {
		suggestions = append(suggestions, Suggestion{
			Type:     "learning",
			Message:  "Spaced repetition beats cramming. Want me to quiz you on this later?",
			Priority: "medium",
		})
	}

	if count, err := ps.messageRepo.CountUserMessagesSince(ctx, nil, userID, now.Add(-time.Hour)); err == nil && count >= 15 {
		suggestions = append(suggestions, Suggestion{
			Type:     "pace",
			Message:  "You're moving fast. Batch up your questions to stay in flow.",
			Priority: "medium",
		})
	}
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if count, err := ps.messageRepo.CountUserMessagesSince(ctx, nil, userID, startOfDay); err == nil && count < 5 && now.Hour() >= 10 {
		suggestions = append(suggestions, Suggestion{
			Type:     "productivity",
			Message:  "Quiet day so far. Want help sketching a plan for it?",
			Priority: "low",
		})
	}

	if scores.Stress > 0.6 {
		suggestions = append(suggestions, Suggestion{
			Type:     "wellness",
			Message:  "You sound stressed. A couple of slow breaths can take the edge off.",
			Priority: "high",
		})
	}
	if scores.Happiness > 0.7 {
		suggestions = append(suggestions, Suggestion{
			Type:     "momentum",
			Message:  "Great energy! This is a good moment to tackle something ambitious.",
			Priority: "medium",
		})
	}

	switch hour := now.Hour(); {
	case hour >= 9 && hour <= 11:
		suggestions = append(suggestions, Suggestion{
			Type:     "morning",
			Message:  "Mornings are prime focus time. Consider starting with your hardest task.",
			Priority: "low",
		})
	case hour >= 14 && hour <= 16:
		suggestions = append(suggestions, Suggestion{
			Type:     "afternoon",
			Message:  "Afternoon slump is normal. A quick walk or a glass of water helps.",
			Priority: "low",
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return priorityWeight[suggestions[i].Priority] > priorityWeight[suggestions[j].Priority]
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func (ps *proactiveService) deadlineSuggestions(ctx context.Context, userID uint, message string, now time.Time) []Suggestion {
	texts := []string{message}
	if recent, err := ps.messageRepo.ListUserMessagesSince(ctx, nil, userID, now.Add(-7*24*time.Hour), 50); err == nil {
		for _, m := range recent {
			texts = append(texts, m.Content)
		}
	}

	var out []Suggestion
	for _, text := range texts {
		lower := strings.ToLower(text)
		if !containsAny(lower, deadlineKeywords) {
			continue
		}
		if !matchesAny(text, datePatterns) {
			continue
		}
		snippet := text
		if len(snippet) > 60 {
			snippet = truncate(snippet, 60) + "..."
		}
		out = append(out, Suggestion{
			Type:     "deadline",
			Message:  "Deadline spotted: \"" + snippet + "\". Want me to help you plan for it?",
			Priority: "high",
		})
		if len(out) >= 3 {
			break
		}
	}
	return out
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
