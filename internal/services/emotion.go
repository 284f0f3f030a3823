package services

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

var stressWords = []string{
	"stressed", "overwhelmed", "anxious", "worried", "frustrated",
	"tired", "exhausted", "deadline", "urgent", "pressure",
}

var happinessWords = []string{
	"happy", "excited", "great", "awesome", "wonderful", "fantastic",
	"amazing", "love", "perfect", "excellent",
}

// EmotionScores is a normalized distribution over the four tracked
// emotional dimensions. Values are each in [0,1] and sum to 1.
type EmotionScores struct {
	Happiness  float64 `json:"happiness"`
	Stress     float64 `json:"stress"`
	Neutral    float64 `json:"neutral"`
	Confidence float64 `json:"confidence"`
}

// Dominant returns the label with the highest score.
func (e EmotionScores) Dominant() string {
	best, label := e.Happiness, "happiness"
	if e.Stress > best {
		best, label = e.Stress, "stress"
	}
	if e.Neutral > best {
		best, label = e.Neutral, "neutral"
	}
	if e.Confidence > best {
		label = "confidence"
	}
	return label
}

// EmotionTrend is the time-averaged view served by the trend endpoint.
type EmotionTrend struct {
	Averages EmotionScores `json:"averages"`
	Dominant string        `json:"dominant"`
	Samples  int           `json:"samples"`
	Hours    int           `json:"hours"`
}

type EmotionService interface {
	// Analyze scores the text and best-effort persists one log row.
	// Persistence failure never blocks the turn.
	Analyze(ctx context.Context, userID, conversationID uint, text string) (EmotionScores, Sentiment)
	Latest(ctx context.Context, userID uint) (EmotionScores, bool)
	Trend(ctx context.Context, userID uint, hours int) (EmotionTrend, error)
}

type emotionService struct {
	db             *gorm.DB
	log            *logger.Logger
	sentiment      SentimentService
	emotionLogRepo repos.EmotionLogRepo
}

func NewEmotionService(db *gorm.DB, log *logger.Logger, sentiment SentimentService, emotionLogRepo repos.EmotionLogRepo) EmotionService {
	return &emotionService{
		db:             db,
		log:            log.With("service", "EmotionService"),
		sentiment:      sentiment,
		emotionLogRepo: emotionLogRepo,
	}
}

func (es *emotionService) Analyze(ctx context.Context, userID, conversationID uint, text string) (EmotionScores, Sentiment) {
	snt := es.sentiment.Analyze(text)
	scores := scoreEmotions(text, snt)

	raw, err := json.Marshal(scores)
	if err == nil {
		entry := &types.EmotionLog{
			UserID:         userID,
			ConversationID: conversationID,
			Emotions:       raw,
			Dominant:       scores.Dominant(),
		}
		if _, err := es.emotionLogRepo.Create(ctx, nil, entry); err != nil {
			es.log.Warn("Failed to persist emotion log", "user_id", userID, "error", err)
		}
	}

	return scores, snt
}

func scoreEmotions(text string, snt Sentiment) EmotionScores {
	tokens := Tokenize(text)
	var stressHits, happyHits int
	for _, tok := range tokens {
		for _, w := range stressWords {
			if tok == w {
				stressHits++
				break
			}
		}
		for _, w := range happinessWords {
			if tok == w {
				happyHits++
				break
			}
		}
	}

	var stressRate, happyRate float64
	if len(tokens) > 0 {
		stressRate = float64(stressHits) / float64(len(tokens))
		happyRate = float64(happyHits) / float64(len(tokens))
	}

	scores := EmotionScores{
		Happiness:  math.Max(0, snt.Polarity) + happyRate,
		Stress:     stressRate + math.Max(0, -snt.Polarity),
		Neutral:    1 - math.Abs(snt.Polarity),
		Confidence: snt.Subjectivity,
	}

	sum := scores.Happiness + scores.Stress + scores.Neutral + scores.Confidence
	if sum == 0 {
		return EmotionScores{Happiness: 0.25, Stress: 0.25, Neutral: 0.25, Confidence: 0.25}
	}
	scores.Happiness /= sum
	scores.Stress /= sum
	scores.Neutral /= sum
	scores.Confidence /= sum
	return scores
}

func (es *emotionService) Latest(ctx context.Context, userID uint) (EmotionScores, bool) {
	entry, err := es.emotionLogRepo.GetLatest(ctx, nil, userID)
	if err != nil || entry == nil {
		return EmotionScores{}, false
	}
	var scores EmotionScores
	if err := json.Unmarshal(entry.Emotions, &scores); err != nil {
		return EmotionScores{}, false
	}
	return scores, true
}

func (es *emotionService) Trend(ctx context.Context, userID uint, hours int) (EmotionTrend, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	entries, err := es.emotionLogRepo.ListByUserSince(ctx, nil, userID, since)
	if err != nil {
		return EmotionTrend{}, err
	}

	trend := EmotionTrend{Hours: hours}
	if len(entries) == 0 {
		trend.Dominant = "neutral"
		return trend, nil
	}

	var sum EmotionScores
	for _, entry := range entries {
		var scores EmotionScores
		if err := json.Unmarshal(entry.Emotions, &scores); err != nil {
			continue
		}
		sum.Happiness += scores.Happiness
		sum.Stress += scores.Stress
		sum.Neutral += scores.Neutral
		sum.Confidence += scores.Confidence
		trend.Samples++
	}
	if trend.Samples == 0 {
		trend.Dominant = "neutral"
		return trend, nil
	}

	n := float64(trend.Samples)
	trend.Averages = EmotionScores{
		Happiness:  sum.Happiness / n,
		Stress:     sum.Stress / n,
		Neutral:    sum.Neutral / n,
		Confidence: sum.Confidence / n,
	}
	trend.Dominant = trend.Averages.Dominant()
	return trend, nil
}
