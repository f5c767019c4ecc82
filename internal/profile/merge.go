package profile

// Field-kind merge rules. Each rule reconciles one profile field from a
// patch; the table is the single place where per-field semantics live.
//
//   - mapping fields: shallow key-wise union, patch keys win
//   - set-like fields: de-duplicated union, existing order preserved
//   - scalar identity fields: overwrite only when the patch value is non-empty
//
// Counters and timestamps (TotalConversations, LastActive) are bumped by the
// storage layer on every turn and deliberately have no rule here.
type mergeRule struct {
	field string
	apply func(dst *Profile, patch Patch)
}

var mergeRules = []mergeRule{
	{"career_context", func(dst *Profile, p Patch) {
		dst.CareerContext = mergeMap(dst.CareerContext, p.CareerContext)
	}},
	{"skill_profile", func(dst *Profile, p Patch) {
		dst.SkillProfile = mergeMap(dst.SkillProfile, p.SkillProfile)
	}},
	{"learning_preferences", func(dst *Profile, p Patch) {
		dst.LearningPreferences = mergeMap(dst.LearningPreferences, p.LearningPreferences)
	}},
	{"learning_challenges", func(dst *Profile, p Patch) {
		dst.LearningChallenges = unionOrdered(dst.LearningChallenges, p.LearningChallenges)
	}},
	{"email", func(dst *Profile, p Patch) {
		if p.Email != "" {
			dst.Email = p.Email
		}
	}},
	{"display_name", func(dst *Profile, p Patch) {
		if p.DisplayName != "" {
			dst.DisplayName = p.DisplayName
		}
	}},
}

// Merge reconciles a partial update into an existing profile and returns the
// result. The input is not mutated. Merge is idempotent: applying the same
// patch twice yields the same mapping and set state as applying it once.
func Merge(existing Profile, patch Patch) Profile {
	out := existing.Clone()
	for _, r := range mergeRules {
		r.apply(&out, patch)
	}
	return out
}

func mergeMap(existing, patch map[string]any) map[string]any {
	if len(patch) == 0 {
		return existing
	}
	out := make(map[string]any, len(existing)+len(patch))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// unionOrdered appends entries not already present, keeping first-seen order.
func unionOrdered(existing, extra []string) []string {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
