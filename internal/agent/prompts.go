package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edustack/companion/internal/llm"
)

// Prompt builders for the six mode handlers. Each returns the full
// role-tagged sequence: a system instruction carrying the mode persona and
// retrieved context, then (for conversational modes) prior history, then the
// current user message. Progress and recommendation prompts deliberately
// omit history to stay tight to current state.

func careerPrompt(s *turnState) []llm.Message {
	system := fmt.Sprintf(`You are a career guidance assistant for a technology learning platform.
User has completed: %s
Current career context: %s

Your goal: help the user discover and pursue their career path in software, AI, and Web3.

If new user:
- Ask about their current situation (student, employed, career change)
- Discover their target role (smart contract developer, backend engineer, data analyst, ...)
- Understand motivation and timeline

If returning user:
- Review progress toward their career goal
- Provide job market insights
- Recommend next steps

Be conversational and encouraging.`,
		completedTitlesLabel(s.course.completed()),
		mapJSON(s.profile.CareerContext))

	return withHistory(s, system)
}

func careerExtractionPrompt(message, reply string) []llm.Message {
	content := fmt.Sprintf(`From this exchange, extract any NEW career facts as JSON.

User message: %s
Assistant reply: %s

Return ONLY a valid JSON object (or an empty object if there is no new information):
{
    "current_role": "student|employed|unemployed|...",
    "target_role": "smart contract developer|...",
    "industries": ["defi", "ai", ...],
    "timeline": "3-6 months|...",
    "motivation": "career change|upskill|..."
}`, message, reply)

	return []llm.Message{{Role: llm.RoleUser, Content: content}}
}

func learningPrompt(s *turnState) []llm.Message {
	title := "Unknown"
	summary := "No summary available"
	if s.course != nil {
		if s.course.ChapterTitle != "" {
			title = s.course.ChapterTitle
		}
		if s.course.ChapterSummary != "" {
			summary = s.course.ChapterSummary
		}
	}

	system := fmt.Sprintf(`You are a learning assistant helping a student through a course.

Current chapter: %s
Chapter content summary:
%s

User's skill profile: %s

Your role:
- Answer questions about the current chapter
- Explain concepts clearly
- Provide examples and analogies
- Give hints for exercises (don't give full solutions)
- Encourage and motivate

Be patient and adaptive to their level.`, title, summary, mapJSON(s.profile.SkillProfile))

	return withHistory(s, system)
}

func progressPrompt(s *turnState) []llm.Message {
	completed := s.course.completed()
	var lines []string
	for _, c := range completed {
		lines = append(lines, "- "+courseTitle(c))
	}

	currentLabel := "No active course"
	if s.course.Active() {
		currentLabel = fmt.Sprintf("Course ID %d", *s.course.CurrentCourseID)
	}

	system := fmt.Sprintf(`You are showing a student their learning progress.

They have completed %d courses:
%s

Currently learning: %s

Career goal: %s

Provide:
- Celebration of achievements
- Progress toward their career goal
- Encouragement
- Next recommended steps`,
		len(completed),
		strings.Join(lines, "\n"),
		currentLabel,
		targetRole(s, "Not set"))

	return withoutHistory(s, system)
}

func recommendationPrompt(s *turnState) []llm.Message {
	system := fmt.Sprintf(`You are a course recommendation assistant for a technology learning platform.

User wants to become: %s
They've completed: %s

Suggest the top 3 next course topics or learning modules they should take, and
explain briefly why each matters for their goal. You don't know the exact
course catalog; focus on topics and learning objectives.`,
		targetRole(s, "a software developer"),
		completedTitlesLabel(s.course.completed()))

	return withoutHistory(s, system)
}

func generalPrompt(s *turnState) []llm.Message {
	system := fmt.Sprintf(`You are a friendly learning companion for a technology education platform.

User's goal: %s

Be helpful, encouraging, and guide them toward their learning goals.`,
		targetRole(s, "learning new skills"))

	return withHistory(s, system)
}

func onboardingPrompt(form *OnboardingForm) []llm.Message {
	system := `You are analyzing a career onboarding form for a technology learning platform.
Your output must be ONLY a single valid JSON object with exactly these fields:
{
    "careerProfile": "a 2-3 paragraph narrative of the learner's career profile and path",
    "courseMatchAnalysis": "how their background maps to recommended learning areas",
    "suggestedCourses": [{"title": "...", "reason": "...", "priority": 1}],
    "additionalNotes": "anything else worth noting"
}
Do not include any other text, prose, or markdown.`

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: onboardingSummary(form)},
	}
}

// onboardingSummary renders the form as a compact profile description for
// the strict-JSON onboarding prompt.
func onboardingSummary(form *OnboardingForm) string {
	var sb strings.Builder
	writeField := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, value)
		}
	}
	writeField("Name", form.FullName)
	writeField("Current role", form.CurrentRole)
	writeField("Target role", form.TargetRole)
	writeField("Experience level", form.ExperienceLevel)
	if len(form.Interests) > 0 {
		writeField("Interests", strings.Join(form.Interests, ", "))
	}
	writeField("Timeline", form.Timeline)
	writeField("Motivation", form.Motivation)
	if sb.Len() == 0 {
		return "No details provided."
	}
	return sb.String()
}

// withHistory assembles system + rolling summary + prior turns + current message.
func withHistory(s *turnState, system string) []llm.Message {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: injectSummary(system, s.summary)}}
	messages = append(messages, s.history...)
	return append(messages, llm.Message{Role: llm.RoleUser, Content: s.message})
}

func withoutHistory(s *turnState, system string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: injectSummary(system, s.summary)},
		{Role: llm.RoleUser, Content: s.message},
	}
}

func injectSummary(system, summary string) string {
	if summary == "" {
		return system
	}
	return system + "\n\nEarlier conversation summary:\n" + summary
}

func completedTitlesLabel(completed []Course) string {
	if len(completed) == 0 {
		return "No courses yet"
	}
	titles := make([]string, len(completed))
	for i, c := range completed {
		titles[i] = courseTitle(c)
	}
	return strings.Join(titles, ", ")
}

func courseTitle(c Course) string {
	if c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("Course ID %d", c.ID)
}

// targetRole reads the stored target-role hint from career context.
func targetRole(s *turnState, fallback string) string {
	if role, ok := s.profile.CareerContext["target_role"].(string); ok && role != "" {
		return role
	}
	return fallback
}

// mapJSON renders a context map compactly for prompt injection.
func mapJSON(m map[string]any) string {
	if len(m) == 0 {
		return "Unknown"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "Unknown"
	}
	return string(b)
}
