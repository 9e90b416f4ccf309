package services

import (
	"context"
	"fmt"
	"log"

	"tickyai/internal/types/usage"
)

// AssistantService is the quota-gated ad-hoc AI query path.
type AssistantService struct {
	ai    TextGenerator
	usage *UsageService
}

func NewAssistantService(ai TextGenerator, usageService *UsageService) *AssistantService {
	return &AssistantService{ai: ai, usage: usageService}
}

// Ask checks the ai_queries allowance, runs the prompt and counts the
// query only after generation succeeded.
func (s *AssistantService) Ask(ctx context.Context, userID string, question string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	check, err := s.usage.CheckLimit(ctx, userID, usage.FeatureAiQueries)
	if err != nil {
		return "", err
	}
	if !check.Allowed {
		return "", fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Message)
	}

	prompt := fmt.Sprintf("You are a pragmatic personal productivity assistant. Answer briefly and concretely.\n\nUser question: %s", question)
	answer, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	if err := s.usage.IncrementUsage(ctx, userID, usage.FeatureAiQueries); err != nil {
		log.Printf("Failed to increment ai query usage for user %s: %v", userID, err)
	}

	return answer, nil
}
