package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/edustack/companion/internal/agent"
	"github.com/edustack/companion/internal/llm"
	"github.com/edustack/companion/internal/profile"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database implementing the agent's context source and
// persistence sink. CommitTurn is serialized per user id: concurrent turns
// for the same user would otherwise lose profile updates in the
// read-merge-write cycle.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "companion.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// parseMigrationVersion extracts the numeric prefix from "0001_init.sql".
func parseMigrationVersion(name string) (int, error) {
	idx := strings.Index(name, "_")
	if idx == -1 {
		return 0, fmt.Errorf("migration %s: missing version prefix", name)
	}
	version, err := strconv.Atoi(name[:idx])
	if err != nil {
		return 0, fmt.Errorf("migration %s: invalid version prefix: %w", name, err)
	}
	return version, nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// --- context source ---

// GetProfile loads the stored profile snapshot; ok is false when none exists.
func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, bool, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `
		SELECT user_id, email, display_name, career_context, skill_profile,
		       learning_preferences, learning_challenges, conversation_summary,
		       total_conversations, last_active
		FROM user_profiles WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return profile.Profile{}, false, nil
	}
	if err != nil {
		return profile.Profile{}, false, fmt.Errorf("loading profile: %w", err)
	}
	return p, true, nil
}

// CreateProfile inserts an empty profile row for the user if absent.
func (s *Store) CreateProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_profiles (user_id) VALUES (?)", userID)
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	return nil
}

// GetRecentHistory returns the newest turns, oldest first.
func (s *Store) GetRecentHistory(ctx context.Context, userID string, limit int) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content FROM conversations
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var newestFirst []llm.Message
	for rows.Next() {
		var m llm.Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	history := make([]llm.Message, len(newestFirst))
	for i, m := range newestFirst {
		history[len(newestFirst)-1-i] = m
	}
	return history, nil
}

// --- persistence sink ---

// CommitTurn applies the profile patch and appends the conversation records
// in one transaction, bumping the conversation counter and last-active stamp
// once per record. Commits for the same user id never interleave.
func (s *Store) CommitTurn(ctx context.Context, commit agent.TurnCommit) error {
	lock := s.userLock(commit.UserID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanProfile(tx.QueryRowContext(ctx, `
		SELECT user_id, email, display_name, career_context, skill_profile,
		       learning_preferences, learning_challenges, conversation_summary,
		       total_conversations, last_active
		FROM user_profiles WHERE user_id = ?`, commit.UserID))
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_profiles (user_id) VALUES (?)", commit.UserID); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		existing = profile.Profile{UserID: commit.UserID}
	case err != nil:
		return fmt.Errorf("loading profile for merge: %w", err)
	}

	merged := profile.Merge(existing, commit.Patch)
	if commit.Summary != nil {
		merged.ConversationSummary = *commit.Summary
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_profiles SET
			email = ?, display_name = ?,
			career_context = ?, skill_profile = ?, learning_preferences = ?,
			learning_challenges = ?, conversation_summary = ?,
			total_conversations = total_conversations + ?,
			last_active = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		merged.Email, merged.DisplayName,
		marshalMap(merged.CareerContext), marshalMap(merged.SkillProfile),
		marshalMap(merged.LearningPreferences), marshalList(merged.LearningChallenges),
		merged.ConversationSummary,
		len(commit.Records),
		commit.UserID); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}

	for _, rec := range commit.Records {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, user_id, role, content, mode, course_id, chapter_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), commit.UserID, rec.Role, rec.Content,
			string(rec.Mode), rec.CourseID, rec.ChapterID); err != nil {
			return fmt.Errorf("appending conversation record: %w", err)
		}
	}

	return tx.Commit()
}

// SaveRecommendations upserts suggested courses by (user, title).
func (s *Store) SaveRecommendations(ctx context.Context, userID string, recs []agent.Recommendation) error {
	for _, rec := range recs {
		if rec.Title == "" {
			continue
		}
		priority := rec.Priority
		if priority < 1 || priority > 5 {
			priority = 3
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO course_recommendations (id, user_id, title, reason, priority)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (user_id, title) DO UPDATE SET reason = excluded.reason, priority = excluded.priority`,
			uuid.New().String(), userID, rec.Title, rec.Reason, priority); err != nil {
			return fmt.Errorf("saving recommendation %q: %w", rec.Title, err)
		}
	}
	return nil
}

// GetRecommendations returns the user's stored recommendations, highest
// priority first.
func (s *Store) GetRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, reason, priority, is_viewed, created_at
		FROM course_recommendations
		WHERE user_id = ?
		ORDER BY priority, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading recommendations: %w", err)
	}
	defer rows.Close()

	var recs []Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Reason, &r.Priority, &r.IsViewed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// LogEvent records a per-turn analytics event.
func (s *Store) LogEvent(ctx context.Context, ev agent.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_analytics (id, user_id, mode, execution_time_ms, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), ev.UserID, string(ev.Mode), ev.DurationMS, ev.Success, ev.Error)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}
	return nil
}

// GetStats aggregates analytics events over the trailing number of days.
func (s *Store) GetStats(ctx context.Context, days int) (AgentStats, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02 15:04:05")

	var stats AgentStats
	var totalTime sql.NullFloat64
	var successRate sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(execution_time_ms), AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END)
		FROM agent_analytics WHERE created_at >= ?`, since).
		Scan(&stats.TotalRequests, &totalTime, &successRate)
	if err != nil {
		return AgentStats{}, fmt.Errorf("aggregating stats: %w", err)
	}
	stats.AvgExecutionTimeMS = totalTime.Float64
	stats.SuccessRate = successRate.Float64
	return stats, nil
}

// DeleteUserData removes the profile and, via cascade, all conversations and
// recommendations. Returns false when no profile existed.
func (s *Store) DeleteUserData(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("deleting user data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- row helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (profile.Profile, error) {
	var p profile.Profile
	var career, skills, prefs, challenges string
	if err := row.Scan(&p.UserID, &p.Email, &p.DisplayName,
		&career, &skills, &prefs, &challenges,
		&p.ConversationSummary, &p.TotalConversations, &p.LastActive); err != nil {
		return profile.Profile{}, err
	}
	p.CareerContext = unmarshalMap(career, "career_context")
	p.SkillProfile = unmarshalMap(skills, "skill_profile")
	p.LearningPreferences = unmarshalMap(prefs, "learning_preferences")
	p.LearningChallenges = unmarshalList(challenges, "learning_challenges")
	return p, nil
}

func marshalMap(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("marshalling profile map failed", "error", err)
		return "{}"
	}
	return string(b)
}

func marshalList(l []string) string {
	if len(l) == 0 {
		return "[]"
	}
	b, err := json.Marshal(l)
	if err != nil {
		slog.Warn("marshalling profile list failed", "error", err)
		return "[]"
	}
	return string(b)
}

// unmarshalMap tolerates malformed stored JSON: a bad column is logged and
// treated as empty rather than failing the turn.
func unmarshalMap(raw, column string) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Warn("malformed profile column, treating as empty", "column", column, "error", err)
		return nil
	}
	return m
}

func unmarshalList(raw, column string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var l []string
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		slog.Warn("malformed profile column, treating as empty", "column", column, "error", err)
		return nil
	}
	return l
}
