package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/triplet-classifier/internal/model"
	"github.com/kart-io/triplet-classifier/pkg/llm"
	"github.com/kart-io/triplet-classifier/pkg/utils/json"
)

const llmSystemPrompt = `You extract factual (subject, predicate, object) triplets from document summaries.
Reply with a JSON array only, no prose. Each element has the keys "subject", "predicate" and "object".
Reply with [] when the text contains no factual relation.`

// LLMExtractor delegates triplet extraction to an external
// language-understanding service through a chat provider. Transport and
// service failures are reported as *ServiceError so the orchestrator can
// retry and fall back.
type LLMExtractor struct {
	provider llm.ChatProvider
}

// NewLLM returns an extractor backed by the given chat provider.
func NewLLM(provider llm.ChatProvider) *LLMExtractor {
	return &LLMExtractor{provider: provider}
}

// Name implements Extractor.
func (e *LLMExtractor) Name() string {
	return "llm/" + e.provider.Name()
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (model.TripletSet, error) {
	prompt := fmt.Sprintf("Extract triplets from the following summary:\n\n%s", text)

	reply, err := e.provider.Generate(ctx, prompt, llmSystemPrompt)
	if err != nil {
		return nil, &ServiceError{Provider: e.provider.Name(), Err: err}
	}

	triplets, err := parseTripletReply(reply)
	if err != nil {
		// A garbled reply is treated like a service failure: a retry may
		// produce parseable output, and the heuristic covers the rest.
		logger.Warnw("unparseable extraction reply",
			"provider", e.provider.Name(),
			"reply_length", len(reply),
		)
		return nil, &ServiceError{Provider: e.provider.Name(), Err: err}
	}

	return triplets, nil
}

// parseTripletReply decodes a JSON triplet array, tolerating surrounding
// prose and markdown code fences.
func parseTripletReply(reply string) (model.TripletSet, error) {
	body := strings.TrimSpace(reply)

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	body = body[start : end+1]

	var triplets model.TripletSet
	if err := json.Unmarshal([]byte(body), &triplets); err != nil {
		return nil, fmt.Errorf("decode triplet array: %w", err)
	}
	return triplets, nil
}
