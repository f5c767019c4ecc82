package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edustack/companion/internal/llm"
	"github.com/edustack/companion/internal/profile"
)

// handlerFunc is one mode strategy: build a prompt, call the model, set the
// reply and (possibly) a profile patch on the state. Exactly one runs per turn.
type handlerFunc func(ctx context.Context, s *turnState) error

// defaultChallengeLabel is recorded when a difficulty signal fires outside a
// titled chapter.
const defaultChallengeLabel = "Current chapter"

func (a *Agent) buildDispatch() map[Mode]handlerFunc {
	return map[Mode]handlerFunc{
		ModeOnboarding:     a.handleOnboarding,
		ModeCareer:         a.handleCareer,
		ModeLearning:       a.handleLearning,
		ModeProgress:       a.handleProgress,
		ModeRecommendation: a.handleRecommendation,
		ModeGeneral:        a.handleGeneral,
	}
}

// handleOnboarding processes a structured onboarding form: one strict-JSON
// model call, tolerant extraction, full field-by-field fallback. The career
// profile narrative becomes the reply.
func (a *Agent) handleOnboarding(ctx context.Context, s *turnState) error {
	if s.onboarding == nil {
		return errors.New("onboarding mode without onboarding payload")
	}
	s.mode = ModeOnboarding

	raw, err := a.generate(ctx, onboardingPrompt(s.onboarding))
	if err != nil {
		return err
	}

	obj, _ := ExtractObject(raw)
	res := onboardingResultFrom(obj)
	if res.CareerProfile == "" {
		// Extraction found nothing usable; the raw text is still the best
		// available narrative.
		res.CareerProfile = raw
	}

	s.reply = res.CareerProfile
	s.onboardingRes = &res
	s.recommendations = res.SuggestedCourses
	s.patch = patchFromOnboarding(s.onboarding)
	return nil
}

func patchFromOnboarding(form *OnboardingForm) profile.Patch {
	career := make(map[string]any)
	setIf := func(key, value string) {
		if value != "" {
			career[key] = value
		}
	}
	setIf("current_role", form.CurrentRole)
	setIf("target_role", form.TargetRole)
	setIf("timeline", form.Timeline)
	setIf("motivation", form.Motivation)
	if len(form.Interests) > 0 {
		career["industries"] = form.Interests
	}

	patch := profile.Patch{
		Email:       form.Email,
		DisplayName: form.FullName,
	}
	if len(career) > 0 {
		patch.CareerContext = career
	}
	if form.ExperienceLevel != "" {
		patch.SkillProfile = map[string]any{"experience_level": form.ExperienceLevel}
	}
	return patch
}

// handleCareer makes two model calls: a conversational reply, then an
// extraction pass for new career facts. The patch is emitted only when at
// least one fact came back non-empty, and merges onto the existing context.
func (a *Agent) handleCareer(ctx context.Context, s *turnState) error {
	reply, err := a.generate(ctx, careerPrompt(s))
	if err != nil {
		return err
	}
	s.reply = reply

	raw, err := a.generate(ctx, careerExtractionPrompt(s.message, reply))
	if err != nil {
		return err
	}
	if obj, ok := ExtractObject(raw); ok {
		if facts := careerFactsFrom(obj); facts != nil {
			s.patch.CareerContext = facts
		}
	}
	return nil
}

// handleLearning answers within the current chapter and tracks difficulty
// signals: any difficulty keyword adds the chapter title to the learner's
// challenges (the merge union keeps it exactly once).
func (a *Agent) handleLearning(ctx context.Context, s *turnState) error {
	reply, err := a.generate(ctx, learningPrompt(s))
	if err != nil {
		return err
	}
	s.reply = reply

	if containsAny(strings.ToLower(s.message), difficultyKeywords) {
		topic := defaultChallengeLabel
		if s.course != nil && s.course.ChapterTitle != "" {
			topic = s.course.ChapterTitle
		}
		s.patch.LearningChallenges = []string{topic}
	}
	return nil
}

func (a *Agent) handleProgress(ctx context.Context, s *turnState) error {
	reply, err := a.generate(ctx, progressPrompt(s))
	if err != nil {
		return err
	}
	s.reply = reply
	return nil
}

func (a *Agent) handleRecommendation(ctx context.Context, s *turnState) error {
	reply, err := a.generate(ctx, recommendationPrompt(s))
	if err != nil {
		return err
	}
	s.reply = reply
	return nil
}

func (a *Agent) handleGeneral(ctx context.Context, s *turnState) error {
	reply, err := a.generate(ctx, generalPrompt(s))
	if err != nil {
		return err
	}
	s.reply = reply
	return nil
}

// generate runs one bounded model call and extracts its plain text.
func (a *Agent) generate(ctx context.Context, messages []llm.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.gen.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("model call: response has no text content")
	}
	return text, nil
}
