package agent

import (
	"reflect"
	"testing"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   map[string]any
		wantOK bool
	}{
		{
			name:   "bare object",
			text:   `{"a": 1}`,
			want:   map[string]any{"a": float64(1)},
			wantOK: true,
		},
		{
			name:   "object with trailing prose",
			text:   `{"a": 1} hope this helps!`,
			want:   map[string]any{"a": float64(1)},
			wantOK: true,
		},
		{
			name:   "object wrapped in code fences",
			text:   "```json\n{\"a\": \"b\"}\n```",
			want:   map[string]any{"a": "b"},
			wantOK: true,
		},
		{
			name:   "leading prose before object",
			text:   "Sure! Here is the JSON:\n{\"role\": \"student\"}",
			want:   map[string]any{"role": "student"},
			wantOK: true,
		},
		{
			name:   "nested braces",
			text:   `{"outer": {"inner": true}}`,
			want:   map[string]any{"outer": map[string]any{"inner": true}},
			wantOK: true,
		},
		{
			name:   "no json at all",
			text:   "no json here",
			wantOK: false,
		},
		{
			name:   "empty string",
			text:   "",
			wantOK: false,
		},
		{
			name:   "malformed object",
			text:   `{"a": `,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractObject(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ExtractObject() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractObject() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOnboardingResultFromNil(t *testing.T) {
	res := onboardingResultFrom(nil)

	if res.CareerProfile != "" || res.CourseMatchAnalysis != "" || res.AdditionalNotes != "" {
		t.Errorf("expected empty strings, got %+v", res)
	}
	if res.SuggestedCourses == nil {
		t.Error("SuggestedCourses must be non-nil even on total failure")
	}
	if len(res.SuggestedCourses) != 0 {
		t.Errorf("SuggestedCourses = %v, want empty", res.SuggestedCourses)
	}
}

func TestOnboardingResultFromMixedCourses(t *testing.T) {
	obj := map[string]any{
		"careerProfile": "A motivated learner.",
		"suggestedCourses": []any{
			"Intro to Go",
			map[string]any{"title": "Solidity Basics", "reason": "target role", "priority": float64(1)},
			map[string]any{"title": "Out of Range", "priority": float64(9)},
			map[string]any{"reason": "no title, dropped"},
			float64(42),
		},
	}

	res := onboardingResultFrom(obj)

	want := []Recommendation{
		{Title: "Intro to Go", Priority: 3},
		{Title: "Solidity Basics", Reason: "target role", Priority: 1},
		{Title: "Out of Range", Priority: 3},
	}
	if !reflect.DeepEqual(res.SuggestedCourses, want) {
		t.Errorf("SuggestedCourses = %+v, want %+v", res.SuggestedCourses, want)
	}
	if res.CareerProfile != "A motivated learner." {
		t.Errorf("CareerProfile = %q", res.CareerProfile)
	}
}

func TestOnboardingResultTolerantFields(t *testing.T) {
	obj := map[string]any{
		"careerProfile":   nil,
		"additionalNotes": float64(5),
	}

	res := onboardingResultFrom(obj)

	if res.CareerProfile != "" {
		t.Errorf("null field should map to empty string, got %q", res.CareerProfile)
	}
	if res.AdditionalNotes != "" {
		t.Errorf("non-string field should map to empty string, got %q", res.AdditionalNotes)
	}
}

func TestCareerFactsFrom(t *testing.T) {
	obj := map[string]any{
		"current_role": "student",
		"target_role":  "  smart contract developer  ",
		"industries":   []any{"defi", "", "ai"},
		"timeline":     "",
		"motivation":   nil,
		"extra_field":  "discarded",
	}

	got := careerFactsFrom(obj)

	want := map[string]any{
		"current_role": "student",
		"target_role":  "smart contract developer",
		"industries":   []string{"defi", "ai"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("careerFactsFrom() = %v, want %v", got, want)
	}
}

func TestCareerFactsFromEmpty(t *testing.T) {
	if got := careerFactsFrom(nil); got != nil {
		t.Errorf("careerFactsFrom(nil) = %v, want nil", got)
	}
	if got := careerFactsFrom(map[string]any{"timeline": "", "unknown": "x"}); got != nil {
		t.Errorf("careerFactsFrom with no usable facts = %v, want nil", got)
	}
}
