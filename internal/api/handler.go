package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/edustack/companion/internal/agent"
	"github.com/edustack/companion/internal/profile"
	"github.com/edustack/companion/internal/storage"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB

	maxUserIDLength  = 128
	maxMessageLength = 2000
)

// Companion runs one conversational turn. Satisfied by *agent.Agent.
type Companion interface {
	Respond(ctx context.Context, in agent.TurnInput) (agent.TurnOutput, error)
}

// StoreReader covers the read and delete paths the management endpoints need.
type StoreReader interface {
	GetProfile(ctx context.Context, userID string) (profile.Profile, bool, error)
	GetRecommendations(ctx context.Context, userID string) ([]storage.Recommendation, error)
	GetStats(ctx context.Context, days int) (storage.AgentStats, error)
	DeleteUserData(ctx context.Context, userID string) (bool, error)
}

// NewHandler returns the HTTP API. The management group is gated by bearer
// auth only when apiToken is non-empty.
func NewHandler(companion Companion, store StoreReader, apiToken string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/student/chat", handleChat(companion, ""))
	r.Post("/api/student/learning-mode", handleChat(companion, agent.ModeLearning))
	r.Post("/api/career-onboarding", handleOnboarding(companion))

	r.Group(func(r chi.Router) {
		if apiToken != "" {
			r.Use(BearerAuth(apiToken))
		}
		r.Get("/api/profile/{userID}", handleGetProfile(store))
		r.Get("/api/recommendations/{userID}", handleGetRecommendations(store))
		r.Get("/api/stats", handleStats(store))
		r.Delete("/api/user/{userID}", handleDeleteUser(store))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type courseContextPayload struct {
	CompletedCourses []coursePayload `json:"completed_courses"`
	CurrentCourseID  *int64          `json:"current_course_id"`
	CurrentChapter   *int            `json:"current_chapter"`
	ChapterTitle     string          `json:"chapter_title"`
	ChapterSummary   string          `json:"chapter_summary"`
}

type coursePayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (p *courseContextPayload) toAgent() *agent.CourseContext {
	if p == nil {
		return nil
	}
	cc := &agent.CourseContext{
		CurrentCourseID: p.CurrentCourseID,
		CurrentChapter:  p.CurrentChapter,
		ChapterTitle:    p.ChapterTitle,
		ChapterSummary:  p.ChapterSummary,
	}
	for _, c := range p.CompletedCourses {
		cc.CompletedCourses = append(cc.CompletedCourses, agent.Course{ID: c.ID, Title: c.Title})
	}
	return cc
}

type chatRequest struct {
	UserID  string                `json:"user_id"`
	Message string                `json:"message"`
	Context *courseContextPayload `json:"context,omitempty"`
}

type chatResponse struct {
	Response        string                 `json:"response"`
	Mode            string                 `json:"mode"`
	ProfileUpdated  bool                   `json:"profile_updated"`
	Recommendations []agent.Recommendation `json:"recommendations,omitempty"`
}

// handleChat serves both the general chat endpoint and the learning-mode
// endpoint, which pins the mode instead of classifying.
func handleChat(companion Companion, forced agent.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if msg, ok := validateChatRequest(req); !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", msg)
			return
		}

		out, err := companion.Respond(r.Context(), agent.TurnInput{
			UserID:     req.UserID,
			Message:    req.Message,
			Context:    req.Context.toAgent(),
			ForcedMode: forced,
		})
		if err != nil {
			slog.Error("turn failed", "user", req.UserID, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "failed to process message")
			return
		}

		writeJSON(w, chatResponse{
			Response:        out.Reply,
			Mode:            string(out.Mode),
			ProfileUpdated:  out.ProfileUpdated,
			Recommendations: out.Recommendations,
		})
	}
}

func validateChatRequest(req chatRequest) (string, bool) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return "user_id is required", false
	}
	if utf8.RuneCountInString(userID) > maxUserIDLength {
		return "user_id too long", false
	}
	if strings.TrimSpace(req.Message) == "" {
		return "message is required", false
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		return fmt.Sprintf("message exceeds %d characters", maxMessageLength), false
	}
	return "", true
}

type onboardingRequest struct {
	UserID          string   `json:"user_id"`
	FullName        string   `json:"fullName"`
	Email           string   `json:"email"`
	CurrentRole     string   `json:"currentRole"`
	TargetRole      string   `json:"targetRole"`
	ExperienceLevel string   `json:"experienceLevel"`
	Interests       []string `json:"interests"`
	Timeline        string   `json:"timeline"`
	Motivation      string   `json:"motivation"`
	AgreeToTerms    bool     `json:"agreeToTerms"`
}

type onboardingResponse struct {
	Success bool                    `json:"success"`
	Mode    string                  `json:"mode"`
	Result  *agent.OnboardingResult `json:"result"`
}

func handleOnboarding(companion Companion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req onboardingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if utf8.RuneCountInString(userID) > maxUserIDLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id too long")
			return
		}
		if !req.AgreeToTerms {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "terms must be accepted")
			return
		}

		out, err := companion.Respond(r.Context(), agent.TurnInput{
			UserID: userID,
			Onboarding: &agent.OnboardingForm{
				FullName:        req.FullName,
				Email:           req.Email,
				CurrentRole:     req.CurrentRole,
				TargetRole:      req.TargetRole,
				ExperienceLevel: req.ExperienceLevel,
				Interests:       req.Interests,
				Timeline:        req.Timeline,
				Motivation:      req.Motivation,
			},
		})
		if err != nil {
			slog.Error("onboarding failed", "user", userID, "error", err)
			httpError(w, http.StatusBadGateway, "api_error", "failed to process onboarding")
			return
		}

		writeJSON(w, onboardingResponse{
			Success: true,
			Mode:    string(out.Mode),
			Result:  out.Onboarding,
		})
	}
}

func handleGetProfile(store StoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		p, ok, err := store.GetProfile(r.Context(), userID)
		if err != nil {
			slog.Error("loading profile failed", "user", userID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load profile")
			return
		}
		if !ok {
			httpError(w, http.StatusNotFound, "not_found_error", "profile not found")
			return
		}
		writeJSON(w, p)
	}
}

func handleGetRecommendations(store StoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		recs, err := store.GetRecommendations(r.Context(), userID)
		if err != nil {
			slog.Error("loading recommendations failed", "user", userID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load recommendations")
			return
		}
		if recs == nil {
			recs = []storage.Recommendation{}
		}
		writeJSON(w, recs)
	}
}

func handleStats(store StoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if raw := r.URL.Query().Get("days"); raw != "" {
			if _, err := fmt.Sscanf(raw, "%d", &days); err != nil || days <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "days must be a positive integer")
				return
			}
		}
		stats, err := store.GetStats(r.Context(), days)
		if err != nil {
			slog.Error("aggregating stats failed", "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to aggregate stats")
			return
		}
		writeJSON(w, stats)
	}
}

func handleDeleteUser(store StoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		deleted, err := store.DeleteUserData(r.Context(), userID)
		if err != nil {
			slog.Error("deleting user data failed", "user", userID, "error", err)
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete user data")
			return
		}
		if !deleted {
			httpError(w, http.StatusNotFound, "not_found_error", "user not found")
			return
		}
		writeJSON(w, map[string]bool{"deleted": true})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
