package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// SQLStore implements Store on database/sql. It speaks SQLite through
// go-sqlite3 and Postgres through the pgx stdlib driver.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

// Open picks the driver from the DSN: postgres:// URLs use pgx, anything else SQLite.
func Open(dsn string) (*SQLStore, error) {
	if dialectFor(normalizeDSN(dsn)) == dialectPostgres {
		return NewPostgresStore(dsn)
	}
	return NewSQLiteStore(dsn)
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialectSQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return newSQLStore(db, dialectSQLite)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	store := &SQLStore{db: db, dialect: d}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLStore) migrate() error {
	ts := s.dialect.timestampType()
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			skills TEXT,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			presence_status TEXT,
			last_seen ` + ts + `,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			tradie_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			pay_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			urgency TEXT,
			required_skills TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			read_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, read_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_job ON messages(job_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

const messageColumns = `id, job_id, sender_id, receiver_id, content, created_at, read_at`

// CreateMessage creates a new message.
func (s *SQLStore) CreateMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.JobID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt.UTC(), nullTime(m.ReadAt))
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`), messageID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesForUser returns every message the user sent or received, oldest first.
func (s *SQLStore) ListMessagesForUser(ctx context.Context, userID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+messageColumns+` FROM messages
		 WHERE sender_id = ? OR receiver_id = ?
		 ORDER BY created_at ASC`), userID, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// ListThread returns the messages of one conversation ordered by created_at ascending.
func (s *SQLStore) ListThread(ctx context.Context, userID string, key domain.ConversationKey) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT `+messageColumns+` FROM messages
		 WHERE job_id = ?
		   AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		 ORDER BY created_at ASC`),
		key.JobID, userID, key.OtherUserID, key.OtherUserID, userID)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// markReadQuery updates and reports the touched rows in one statement, so a
// message inserted concurrently is either both marked and returned or neither.
const markReadQuery = `UPDATE messages SET read_at = ?
	 WHERE job_id = ? AND receiver_id = ? AND sender_id = ? AND read_at IS NULL
	 RETURNING id`

// MarkConversationRead sets read_at on every unread message of the conversation
// addressed to readerID and returns the IDs it touched.
func (s *SQLStore) MarkConversationRead(ctx context.Context, readerID string, key domain.ConversationKey, readAt time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(markReadQuery),
		readAt.UTC(), key.JobID, readerID, key.OtherUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUnread counts unread messages addressed to userID in one conversation.
func (s *SQLStore) CountUnread(ctx context.Context, userID string, key domain.ConversationKey) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT COUNT(*) FROM messages
		 WHERE job_id = ? AND receiver_id = ? AND sender_id = ? AND read_at IS NULL`),
		key.JobID, userID, key.OtherUserID).Scan(&n)
	return n, err
}

const jobColumns = `id, tradie_id, title, description, latitude, longitude, pay_rate, urgency, required_skills, status, created_at`

// CreateJob creates a new job.
func (s *SQLStore) CreateJob(ctx context.Context, job *domain.Job) error {
	skills, _ := json.Marshal(job.RequiredSkills)
	lat, lng := nullLocation(job.Location)
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.TradieID, job.Title, job.Description, lat, lng, job.PayRate,
		string(job.Urgency), string(skills), string(job.Status), job.CreatedAt.UTC())
	return err
}

// GetJob retrieves a job by ID.
func (s *SQLStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs lists jobs with the given status, newest first. An empty status lists all jobs.
func (s *SQLStore) ListJobs(ctx context.Context, status domain.JobStatus) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

const profileColumns = `id, role, full_name, latitude, longitude, skills, is_verified, presence_status, last_seen, created_at`

// UpsertProfile creates or replaces a profile.
func (s *SQLStore) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	skills, _ := json.Marshal(p.Skills)
	lat, lng := nullLocation(p.Location)
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			role = excluded.role,
			full_name = excluded.full_name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			skills = excluded.skills,
			is_verified = excluded.is_verified`),
		p.ID, string(p.Role), p.FullName, lat, lng, string(skills), p.IsVerified,
		nullString(string(p.PresenceStatus)), nullTime(p.LastSeen), createdAt.UTC())
	return err
}

// GetProfile retrieves a profile by user ID.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`), userID)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles lists profiles of the given role. An empty role lists all profiles.
func (s *SQLStore) ListProfiles(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdatePresence mirrors a presence status onto the profile row.
func (s *SQLStore) UpdatePresence(ctx context.Context, userID string, status domain.PresenceStatus, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`UPDATE profiles SET presence_status = ?, last_seen = ? WHERE id = ?`),
		string(status), lastSeen.UTC(), userID)
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (*domain.Message, error) {
	var m domain.Message
	var readAt sql.NullTime
	if err := row.Scan(&m.ID, &m.JobID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &readAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		t := readAt.Time
		m.ReadAt = &t
	}
	return &m, nil
}

func collectMessages(rows *sql.Rows) ([]domain.Message, error) {
	defer rows.Close()
	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanJob(row scanner) (*domain.Job, error) {
	var job domain.Job
	var description, urgency, skills sql.NullString
	var lat, lng sql.NullFloat64
	var status string
	if err := row.Scan(&job.ID, &job.TradieID, &job.Title, &description, &lat, &lng, &job.PayRate,
		&urgency, &skills, &status, &job.CreatedAt); err != nil {
		return nil, err
	}
	job.Description = description.String
	job.Location = locationFrom(lat, lng)
	job.Status = domain.JobStatus(status)
	if urgency.Valid {
		u, err := domain.ParseUrgency(urgency.String)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.ID, err)
		}
		job.Urgency = u
	}
	if skills.Valid && skills.String != "" {
		if err := json.Unmarshal([]byte(skills.String), &job.RequiredSkills); err != nil {
			return nil, fmt.Errorf("job %s: invalid required_skills: %w", job.ID, err)
		}
	}
	return &job, nil
}

func scanProfile(row scanner) (*domain.Profile, error) {
	var p domain.Profile
	var role string
	var skills, presence sql.NullString
	var lat, lng sql.NullFloat64
	var lastSeen sql.NullTime
	if err := row.Scan(&p.ID, &role, &p.FullName, &lat, &lng, &skills, &p.IsVerified,
		&presence, &lastSeen, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	p.Location = locationFrom(lat, lng)
	if presence.Valid {
		p.PresenceStatus = domain.PresenceStatus(presence.String)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		p.LastSeen = &t
	}
	if skills.Valid && skills.String != "" {
		if err := json.Unmarshal([]byte(skills.String), &p.Skills); err != nil {
			return nil, fmt.Errorf("profile %s: invalid skills: %w", p.ID, err)
		}
	}
	return &p, nil
}

// locationFrom returns nil unless both coordinates are present.
func locationFrom(lat, lng sql.NullFloat64) *domain.Location {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Location{Latitude: lat.Float64, Longitude: lng.Float64}
}

func nullLocation(loc *domain.Location) (sql.NullFloat64, sql.NullFloat64) {
	if loc == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Latitude, Valid: true}, sql.NullFloat64{Float64: loc.Longitude, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
