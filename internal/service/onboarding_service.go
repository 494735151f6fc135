package service

import (
	"context"
	"slices"
	"strings"

	"anything-world/internal/model"
	"anything-world/pkg/apierror"
)

type OnboardingStore interface {
	Upsert(ctx context.Context, userID string, choices []string) (model.Onboarding, error)
}

type OnboardingService struct {
	store OnboardingStore
}

func NewOnboardingService(store OnboardingStore) *OnboardingService {
	return &OnboardingService{store: store}
}

// Save stores the caller's usage choices. At least one known choice is
// required; duplicates collapse.
func (s *OnboardingService) Save(ctx context.Context, userID string, choices []string) (model.Onboarding, error) {
	if len(choices) == 0 {
		return model.Onboarding{}, apierror.BadRequest("at least one choice is required", "")
	}

	cleaned := make([]string, 0, len(choices))
	for _, choice := range choices {
		choice = strings.ToLower(strings.TrimSpace(choice))
		if !slices.Contains(model.OnboardingChoices, choice) {
			return model.Onboarding{}, apierror.BadRequest("invalid choice", choice)
		}
		if !slices.Contains(cleaned, choice) {
			cleaned = append(cleaned, choice)
		}
	}

	return s.store.Upsert(ctx, userID, cleaned)
}
