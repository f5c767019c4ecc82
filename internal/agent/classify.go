package agent

import "strings"

// Keyword sets for the mode rules. Matching is case-insensitive substring
// matching against the lower-cased message. These are configuration, not
// behavior: changing a set never changes rule ordering.
var (
	progressKeywords       = []string{"progress", "how am i doing", "stats"}
	recommendationKeywords = []string{"what next", "recommend", "what should i", "what course"}
	progressReviewKeywords = []string{"progress", "completed", "achievement"}
	careerKeywords         = []string{"career", "job", "become a", "work as"}

	// difficultyKeywords drives challenge tracking in the learning handler,
	// not classification.
	difficultyKeywords = []string{"don't understand", "confused", "stuck", "difficult"}
)

// classify resolves the turn's mode. Pure function of the turn state; rules
// are evaluated in priority order and the first match wins, with "general"
// as the exhaustive default.
func classify(s *turnState) Mode {
	if s.onboarding != nil {
		return ModeOnboarding
	}

	// First-contact funnel: nothing completed and no career context yet.
	if len(s.course.completed()) == 0 && len(s.profile.CareerContext) == 0 {
		return ModeCareer
	}

	message := strings.ToLower(s.message)

	if s.course.Active() {
		switch {
		case containsAny(message, progressKeywords):
			return ModeProgress
		case containsAny(message, recommendationKeywords):
			return ModeRecommendation
		default:
			return ModeLearning
		}
	}

	if containsAny(message, progressReviewKeywords) {
		return ModeProgress
	}
	if containsAny(message, careerKeywords) {
		return ModeCareer
	}
	return ModeGeneral
}

func containsAny(message string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}
