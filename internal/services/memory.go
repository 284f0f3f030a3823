package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

// Keywords that mark a user message as worth capturing verbatim.
var captureKeywords = []string{"remember", "important", "deadline", "meeting"}

const memoryContextLimit = 500

type MemoryService interface {
	Store(ctx context.Context, userID uint, memoryType, key, value string, importance float64) (*types.Memory, error)
	// Retrieve ranks the caller's memories by tf-idf cosine similarity
	// against the query, weighted by importance. Ties break by
	// importance then recency. A query with no usable tokens falls
	// back to the most recent records.
	Retrieve(ctx context.Context, userID uint, query string, limit int) ([]*types.Memory, error)
	ContextBlock(memories []*types.Memory) string
	CaptureFromMessage(ctx context.Context, userID uint, text string)
	RecordInteraction(ctx context.Context, userID uint, text string)
}

type memoryService struct {
	db         *gorm.DB
	log        *logger.Logger
	memoryRepo repos.MemoryRepo
}

func NewMemoryService(db *gorm.DB, log *logger.Logger, memoryRepo repos.MemoryRepo) MemoryService {
	return &memoryService{
		db:         db,
		log:        log.With("service", "MemoryService"),
		memoryRepo: memoryRepo,
	}
}

func (ms *memoryService) Store(ctx context.Context, userID uint, memoryType, key, value string, importance float64) (*types.Memory, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("memory key required")
	}
	if importance <= 0 {
		importance = 1.0
	}
	if memoryType == "" {
		memoryType = "general"
	}
	memory := &types.Memory{
		UserID:          userID,
		Type:            memoryType,
		Key:             key,
		Value:           value,
		ImportanceScore: importance,
		LastAccessed:    time.Now().UTC(),
	}
	return ms.memoryRepo.Create(ctx, nil, memory)
}

func (ms *memoryService) Retrieve(ctx context.Context, userID uint, query string, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 5
	}

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 {
		return ms.memoryRepo.ListRecent(ctx, nil, userID, limit)
	}

	memories, err := ms.memoryRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(memories))
	for i, m := range memories {
		docs[i] = Tokenize(m.Key + " " + m.Value)
	}

	similarities := cosineSimilarities(queryTokens, docs)

	type scored struct {
		memory *types.Memory
		score  float64
	}
	ranked := make([]scored, 0, len(memories))
	for i, m := range memories {
		ranked = append(ranked, scored{memory: m, score: similarities[i] * m.ImportanceScore})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].memory.ImportanceScore != ranked[j].memory.ImportanceScore {
			return ranked[i].memory.ImportanceScore > ranked[j].memory.ImportanceScore
		}
		return ranked[i].memory.CreatedAt.After(ranked[j].memory.CreatedAt)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	results := make([]*types.Memory, 0, len(ranked))
	ids := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, r.memory)
		ids = append(ids, r.memory.ID)
	}
	if err := ms.memoryRepo.TouchLastAccessed(ctx, nil, ids); err != nil {
		ms.log.Warn("Failed to touch memory access times", "error", err)
	}
	return results, nil
}

// ContextBlock joins memories into "key: value" lines, capped at 500
// characters, for prefixing the model prompt.
func (ms *memoryService) ContextBlock(memories []*types.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		lines = append(lines, m.Key+": "+m.Value)
	}
	return truncate(strings.Join(lines, "\n"), memoryContextLimit)
}

func (ms *memoryService) CaptureFromMessage(ctx context.Context, userID uint, text string) {
	lower := strings.ToLower(text)
	matched := false
	for _, kw := range captureKeywords {
		if strings.Contains(lower, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return
	}
	key := truncate(text, 50)
	if _, err := ms.Store(ctx, userID, "important_info", key, text, 1.5); err != nil {
		ms.log.Warn("Failed to capture memory from message", "user_id", userID, "error", err)
	}
}

func (ms *memoryService) RecordInteraction(ctx context.Context, userID uint, text string) {
	value := truncate(text, 100)
	key := "chat_" + time.Now().UTC().Format("20060102150405")
	if _, err := ms.Store(ctx, userID, "interaction_pattern", key, value, 1.0); err != nil {
		ms.log.Warn("Failed to record interaction memory", "user_id", userID, "error", err)
	}
}

// cosineSimilarities returns the tf-idf cosine similarity between the
// query and each document.
func cosineSimilarities(query []string, docs [][]string) []float64 {
	df := map[string]int{}
	for _, doc := range docs {
		seen := map[string]bool{}
		for _, tok := range doc {
			if !seen[tok] {
				df[tok]++
				seen[tok] = true
			}
		}
	}
	n := float64(len(docs))

	idf := func(term string) float64 {
		// Smoothed so terms outside the corpus still carry weight.
		return math.Log((n+1)/(float64(df[term])+1)) + 1
	}

	vector := func(tokens []string) map[string]float64 {
		tf := map[string]float64{}
		for _, tok := range tokens {
			tf[tok]++
		}
		vec := make(map[string]float64, len(tf))
		for term, count := range tf {
			vec[term] = (count / float64(len(tokens))) * idf(term)
		}
		return vec
	}

	qvec := vector(query)
	var qnorm float64
	for _, w := range qvec {
		qnorm += w * w
	}
	qnorm = math.Sqrt(qnorm)

	out := make([]float64, len(docs))
	for i, doc := range docs {
		if len(doc) == 0 || qnorm == 0 {
			continue
		}
		dvec := vector(doc)
		var dot, dnorm float64
		for term, w := range dvec {
			dnorm += w * w
			if qw, ok := qvec[term]; ok {
				dot += qw * w
			}
		}
		dnorm = math.Sqrt(dnorm)
		if dnorm == 0 {
			continue
		}
		out[i] = dot / (qnorm * dnorm)
	}
	return out
}
