package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edustack/companion/internal/llm"
	"github.com/edustack/companion/internal/profile"
)

const (
	defaultModelTimeout = 30 * time.Second

	// defaultHistoryLimit is how many stored turns are loaded at turn start;
	// it must exceed the summarization threshold so compression can trigger.
	defaultHistoryLimit = 20
)

// Agent runs one request-response cycle: load context, bound the history,
// classify the mode, dispatch to exactly one handler, and persist the
// outcome as a single unit.
type Agent struct {
	source     ContextSource
	sink       Sink
	gen        llm.Generator
	summarizer *Summarizer

	dispatch     map[Mode]handlerFunc
	timeout      time.Duration
	historyLimit int
}

// New creates an Agent wired to its collaborators. modelTimeout bounds each
// model call; <= 0 selects the default (30s).
func New(source ContextSource, sink Sink, gen llm.Generator, modelTimeout time.Duration) *Agent {
	if modelTimeout <= 0 {
		modelTimeout = defaultModelTimeout
	}
	a := &Agent{
		source:       source,
		sink:         sink,
		gen:          gen,
		summarizer:   NewSummarizer(gen),
		timeout:      modelTimeout,
		historyLimit: defaultHistoryLimit,
	}
	a.dispatch = a.buildDispatch()
	return a
}

// Respond processes one turn. On handler or persistence failure nothing is
// stored and the caller receives an error; the transport layer maps it to a
// generic failure signal.
func (a *Agent) Respond(ctx context.Context, in TurnInput) (TurnOutput, error) {
	start := time.Now()
	out, err := a.respond(ctx, in)

	ev := Event{
		UserID:     in.UserID,
		Mode:       out.Mode,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if logErr := a.sink.LogEvent(ctx, ev); logErr != nil {
		slog.Warn("logging agent event failed", "error", logErr)
	}

	return out, err
}

func (a *Agent) respond(ctx context.Context, in TurnInput) (TurnOutput, error) {
	if in.UserID == "" {
		return TurnOutput{}, errors.New("user id is required")
	}
	if in.Message == "" && in.Onboarding == nil {
		return TurnOutput{}, errors.New("message is required")
	}

	state, err := a.loadContext(ctx, in)
	if err != nil {
		return TurnOutput{}, err
	}

	state.history, state.summary = a.summarizer.Compress(ctx, state.history, state.summary)
	state.mode = resolveMode(state, in.ForcedMode)

	handler := a.dispatch[state.mode]
	if err := handler(ctx, state); err != nil {
		return TurnOutput{}, fmt.Errorf("handling %s turn: %w", state.mode, err)
	}
	if state.reply == "" {
		return TurnOutput{}, fmt.Errorf("handling %s turn: no reply produced", state.mode)
	}

	if err := a.persist(ctx, state); err != nil {
		return TurnOutput{}, fmt.Errorf("persisting turn: %w", err)
	}

	slog.Debug("turn complete",
		"user", state.userID,
		"mode", state.mode,
		"profile_updated", !state.patch.IsEmpty(),
	)

	return TurnOutput{
		Reply:           state.reply,
		Mode:            state.mode,
		ProfileUpdated:  !state.patch.IsEmpty(),
		Recommendations: state.recommendations,
		Onboarding:      state.onboardingRes,
	}, nil
}

// loadContext reads the profile snapshot and recent history, creating the
// profile lazily on first contact.
func (a *Agent) loadContext(ctx context.Context, in TurnInput) (*turnState, error) {
	p, ok, err := a.source.GetProfile(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if !ok {
		if err := a.source.CreateProfile(ctx, in.UserID); err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		p = profile.Profile{UserID: in.UserID}
	}

	history, err := a.source.GetRecentHistory(ctx, in.UserID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	message := in.Message
	if message == "" {
		message = "Career onboarding form submitted"
	}

	return &turnState{
		userID:     in.UserID,
		message:    message,
		profile:    p,
		history:    history,
		summary:    p.ConversationSummary,
		course:     in.Context,
		onboarding: in.Onboarding,
	}, nil
}

// resolveMode applies the classifier, honoring a valid forced mode from
// dedicated endpoints. An onboarding payload always wins.
func resolveMode(s *turnState, forced Mode) Mode {
	if s.onboarding != nil {
		return ModeOnboarding
	}
	if forced != "" && forced.Valid() && forced != ModeOnboarding {
		return forced
	}
	return classify(s)
}

// persist commits the patch and both conversation records atomically, then
// stores any suggested courses best-effort.
func (a *Agent) persist(ctx context.Context, s *turnState) error {
	var courseID *int64
	var chapterID *int
	if s.course != nil {
		courseID = s.course.CurrentCourseID
		chapterID = s.course.CurrentChapter
	}

	commit := TurnCommit{
		UserID: s.userID,
		Patch:  s.patch,
		Records: []Record{
			{Role: llm.RoleUser, Content: s.message, Mode: s.mode, CourseID: courseID, ChapterID: chapterID},
			{Role: llm.RoleAssistant, Content: s.reply, Mode: s.mode, CourseID: courseID, ChapterID: chapterID},
		},
	}
	if s.summary != s.profile.ConversationSummary {
		summary := s.summary
		commit.Summary = &summary
	}

	if err := a.sink.CommitTurn(ctx, commit); err != nil {
		return err
	}

	if len(s.recommendations) > 0 {
		if err := a.sink.SaveRecommendations(ctx, s.userID, s.recommendations); err != nil {
			slog.Warn("saving recommendations failed", "user", s.userID, "error", err)
		}
	}
	return nil
}
