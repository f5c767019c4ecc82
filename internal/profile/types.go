package profile

import "time"

// Profile is the persistent per-learner record. Exactly one exists per user
// id, created lazily on first turn. The agent core only ever reads a snapshot
// at turn start and emits a Patch at turn end; the storage layer owns the
// record between those points.
type Profile struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`

	CareerContext       map[string]any `json:"career_context"` // target roles, timeline, motivation, ...
	SkillProfile        map[string]any `json:"skill_profile"`
	LearningPreferences map[string]any `json:"learning_preferences"`
	LearningChallenges  []string       `json:"learning_challenges"` // de-duplicated, first-seen order

	// ConversationSummary is the rolling digest of evicted history turns.
	ConversationSummary string `json:"conversation_summary"`

	// Maintained unconditionally by the storage layer, never by patches.
	TotalConversations int       `json:"total_conversations"`
	LastActive         time.Time `json:"last_active"`
}

// Patch is a partial profile update emitted by a mode handler. A zero field
// means "no change" for that field.
type Patch struct {
	Email       string
	DisplayName string

	CareerContext       map[string]any
	SkillProfile        map[string]any
	LearningPreferences map[string]any
	LearningChallenges  []string
}

// IsEmpty reports whether applying the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Email == "" &&
		p.DisplayName == "" &&
		len(p.CareerContext) == 0 &&
		len(p.SkillProfile) == 0 &&
		len(p.LearningPreferences) == 0 &&
		len(p.LearningChallenges) == 0
}

// Clone returns a deep copy so callers can mutate snapshots freely.
func (p Profile) Clone() Profile {
	cp := p
	cp.CareerContext = cloneMap(p.CareerContext)
	cp.SkillProfile = cloneMap(p.SkillProfile)
	cp.LearningPreferences = cloneMap(p.LearningPreferences)
	if p.LearningChallenges != nil {
		cp.LearningChallenges = make([]string, len(p.LearningChallenges))
		copy(cp.LearningChallenges, p.LearningChallenges)
	}
	return cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
