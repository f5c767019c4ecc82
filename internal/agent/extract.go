package agent

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ExtractObject pulls a best-effort JSON object out of free-form model text.
// The text may wrap the object in prose or code fences; the span from the
// first opening brace to the last closing brace is tried first, then the
// trimmed text as-is. ok is false when no object can be recovered — never an
// error, callers substitute defaults field by field.
func ExtractObject(text string) (map[string]any, bool) {
	if span, found := braceSpan(text); found {
		if obj, ok := tryParseObject(span); ok {
			return obj, true
		}
	}
	if obj, ok := tryParseObject(strings.TrimSpace(text)); ok {
		return obj, true
	}
	slog.Warn("no JSON object in model output", "prefix", prefix(text, 120))
	return nil, false
}

func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func tryParseObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func prefix(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// stringField returns obj[key] as a string, or "" when absent, null, or not
// a string.
func stringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// stringList returns obj[key] as a string slice, tolerating absence, null,
// and mixed-type arrays. Never nil.
func stringList(obj map[string]any, key string) []string {
	out := []string{}
	if obj == nil {
		return out
	}
	items, _ := obj[key].([]any)
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// OnboardingResult is the structured outcome of the onboarding prompt. All
// string fields are non-null and SuggestedCourses is non-nil even when
// extraction fails entirely.
type OnboardingResult struct {
	CareerProfile       string           `json:"careerProfile"`
	CourseMatchAnalysis string           `json:"courseMatchAnalysis"`
	SuggestedCourses    []Recommendation `json:"suggestedCourses"`
	AdditionalNotes     string           `json:"additionalNotes"`
}

// onboardingResultFrom maps a tolerantly-parsed object onto an
// OnboardingResult, substituting safe defaults for every missing field.
// Suggested course entries may be plain strings or {title, reason, priority}
// objects; both are accepted.
func onboardingResultFrom(obj map[string]any) OnboardingResult {
	res := OnboardingResult{
		CareerProfile:       stringField(obj, "careerProfile"),
		CourseMatchAnalysis: stringField(obj, "courseMatchAnalysis"),
		SuggestedCourses:    []Recommendation{},
		AdditionalNotes:     stringField(obj, "additionalNotes"),
	}
	if obj == nil {
		return res
	}

	items, _ := obj["suggestedCourses"].([]any)
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				res.SuggestedCourses = append(res.SuggestedCourses, Recommendation{Title: strings.TrimSpace(v), Priority: 3})
			}
		case map[string]any:
			title := stringField(v, "title")
			if title == "" {
				continue
			}
			rec := Recommendation{Title: title, Reason: stringField(v, "reason"), Priority: 3}
			if p, ok := v["priority"].(float64); ok && p >= 1 && p <= 5 {
				rec.Priority = int(p)
			}
			res.SuggestedCourses = append(res.SuggestedCourses, rec)
		}
	}
	return res
}

// careerFactKeys are the only fields accepted from the career extraction
// call; anything else the model volunteers is discarded.
var careerFactKeys = []string{"current_role", "target_role", "industries", "timeline", "motivation"}

// careerFactsFrom filters a tolerantly-parsed object down to non-empty
// career facts. Returns nil when nothing usable was extracted.
func careerFactsFrom(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	facts := make(map[string]any)
	for _, key := range careerFactKeys {
		switch v := obj[key].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				facts[key] = strings.TrimSpace(v)
			}
		case []any:
			if list := stringList(obj, key); len(list) > 0 {
				facts[key] = list
			}
		}
	}
	if len(facts) == 0 {
		return nil
	}
	return facts
}
