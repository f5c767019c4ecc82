package profile

import (
	"reflect"
	"testing"
)

func TestMergeMapFields(t *testing.T) {
	existing := Profile{
		UserID: "u1",
		CareerContext: map[string]any{
			"current_role": "student",
			"target_role":  "backend engineer",
		},
	}
	patch := Patch{
		CareerContext: map[string]any{
			"target_role": "smart contract developer",
			"timeline":    "6 months",
		},
	}

	got := Merge(existing, patch)

	want := map[string]any{
		"current_role": "student",
		"target_role":  "smart contract developer",
		"timeline":     "6 months",
	}
	if !reflect.DeepEqual(got.CareerContext, want) {
		t.Errorf("CareerContext = %v, want %v", got.CareerContext, want)
	}

	// Input must not be mutated.
	if existing.CareerContext["target_role"] != "backend engineer" {
		t.Error("Merge mutated the existing profile")
	}
}

func TestMergeEmptyPatchKeepsExisting(t *testing.T) {
	existing := Profile{
		UserID:             "u1",
		Email:              "a@example.com",
		DisplayName:        "Ada",
		SkillProfile:       map[string]any{"experience_level": "beginner"},
		LearningChallenges: []string{"Pointers"},
	}

	got := Merge(existing, Patch{})

	if !reflect.DeepEqual(got, existing) {
		t.Errorf("Merge with empty patch changed the profile:\ngot  %+v\nwant %+v", got, existing)
	}
}

func TestMergeChallengesUnion(t *testing.T) {
	existing := Profile{LearningChallenges: []string{"Pointers", "Recursion"}}
	patch := Patch{LearningChallenges: []string{"Recursion", "Goroutines"}}

	got := Merge(existing, patch)

	want := []string{"Pointers", "Recursion", "Goroutines"}
	if !reflect.DeepEqual(got.LearningChallenges, want) {
		t.Errorf("LearningChallenges = %v, want %v", got.LearningChallenges, want)
	}
}

func TestMergeIdempotent(t *testing.T) {
	existing := Profile{
		CareerContext:      map[string]any{"current_role": "student"},
		LearningChallenges: []string{"Pointers"},
	}
	patch := Patch{
		Email:              "a@example.com",
		CareerContext:      map[string]any{"timeline": "3 months"},
		LearningChallenges: []string{"Goroutines"},
	}

	once := Merge(existing, patch)
	twice := Merge(once, patch)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Merge not idempotent:\nonce  %+v\ntwice %+v", once, twice)
	}
}

func TestMergeScalarOverwriteOnlyNonEmpty(t *testing.T) {
	existing := Profile{Email: "old@example.com", DisplayName: "Old Name"}

	got := Merge(existing, Patch{DisplayName: "New Name"})

	if got.Email != "old@example.com" {
		t.Errorf("Email = %q, want unchanged old@example.com", got.Email)
	}
	if got.DisplayName != "New Name" {
		t.Errorf("DisplayName = %q, want New Name", got.DisplayName)
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Error("zero Patch should be empty")
	}
	if (Patch{Email: "a@example.com"}).IsEmpty() {
		t.Error("Patch with email should not be empty")
	}
	if (Patch{LearningChallenges: []string{"x"}}).IsEmpty() {
		t.Error("Patch with challenges should not be empty")
	}
}
