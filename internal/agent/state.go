package agent

import (
	"context"

	"github.com/edustack/companion/internal/llm"
	"github.com/edustack/companion/internal/profile"
)

// Mode is one of six mutually exclusive response strategies selected per turn.
type Mode string

const (
	ModeOnboarding     Mode = "onboarding"
	ModeCareer         Mode = "career"
	ModeLearning       Mode = "learning"
	ModeProgress       Mode = "progress"
	ModeRecommendation Mode = "recommendation"
	ModeGeneral        Mode = "general"
)

// Modes lists every mode the classifier can produce.
var Modes = []Mode{ModeOnboarding, ModeCareer, ModeLearning, ModeProgress, ModeRecommendation, ModeGeneral}

// Valid reports whether m is one of the six known modes.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Course is a completed course as supplied by the caller.
type Course struct {
	ID    int64
	Title string
}

// CourseContext is the caller-supplied learning context snapshot. Course and
// enrollment data arrive already resolved; the agent never fetches them.
type CourseContext struct {
	CompletedCourses []Course
	CurrentCourseID  *int64
	CurrentChapter   *int
	ChapterTitle     string
	ChapterSummary   string
}

// Active reports whether a course is currently in progress.
func (c *CourseContext) Active() bool {
	return c != nil && c.CurrentCourseID != nil
}

func (c *CourseContext) completed() []Course {
	if c == nil {
		return nil
	}
	return c.CompletedCourses
}

// OnboardingForm is the structured career-onboarding payload. Its presence on
// a turn forces onboarding mode.
type OnboardingForm struct {
	FullName        string
	Email           string
	CurrentRole     string
	TargetRole      string
	ExperienceLevel string
	Interests       []string
	Timeline        string
	Motivation      string
}

// Recommendation is one suggested course produced during onboarding.
type Recommendation struct {
	Title    string `json:"title"`
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

// TurnInput is the per-request contract from the transport layer.
type TurnInput struct {
	UserID     string
	Message    string
	Onboarding *OnboardingForm
	Context    *CourseContext

	// ForcedMode pins the mode for dedicated endpoints (e.g. learning help).
	// An onboarding payload still takes precedence.
	ForcedMode Mode
}

// TurnOutput is the per-request result surfaced to the transport layer.
type TurnOutput struct {
	Reply           string
	Mode            Mode
	ProfileUpdated  bool
	Recommendations []Recommendation

	// Onboarding carries the full structured onboarding result when the turn
	// was payload-driven; nil otherwise.
	Onboarding *OnboardingResult
}

// turnState is the ephemeral record threaded through one turn's pipeline.
// It is created at turn start, mutated by each stage, and discarded after
// persistence.
type turnState struct {
	userID  string
	message string

	profile profile.Profile
	history []llm.Message
	summary string

	course     *CourseContext
	onboarding *OnboardingForm

	mode            Mode
	reply           string
	patch           profile.Patch
	recommendations []Recommendation
	onboardingRes   *OnboardingResult
}

// Record is one stored side of an exchange.
type Record struct {
	Role      string
	Content   string
	Mode      Mode
	CourseID  *int64
	ChapterID *int
}

// TurnCommit is the atomic persistence unit for one completed turn: the
// profile patch plus exactly two conversation records, applied together or
// not at all.
type TurnCommit struct {
	UserID string
	Patch  profile.Patch

	// Summary replaces the stored rolling summary when non-nil.
	Summary *string

	Records []Record
}

// Event is a per-turn analytics record, logged best-effort after the turn.
type Event struct {
	UserID     string
	Mode       Mode
	DurationMS int64
	Success    bool
	Error      string
}

// ContextSource loads per-user state at turn start.
type ContextSource interface {
	// GetProfile returns the stored profile snapshot; ok is false when no
	// profile exists yet for the user id.
	GetProfile(ctx context.Context, userID string) (p profile.Profile, ok bool, err error)
	GetRecentHistory(ctx context.Context, userID string, limit int) ([]llm.Message, error)
	CreateProfile(ctx context.Context, userID string) error
}

// Sink persists the turn's outcome. CommitTurn must be atomic and must
// serialize commits per user id; concurrent turns for the same user would
// otherwise race on the read-merge-write cycle and lose updates.
type Sink interface {
	CommitTurn(ctx context.Context, commit TurnCommit) error
	SaveRecommendations(ctx context.Context, userID string, recs []Recommendation) error
	LogEvent(ctx context.Context, ev Event) error
}
