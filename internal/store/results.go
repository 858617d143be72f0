package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dudu/interviewlens/internal/session"
)

// ErrResultNotFound is returned when no result row has the requested id
var ErrResultNotFound = errors.New("tracking result not found")

// Schema creates the result table
const Schema = `CREATE TABLE IF NOT EXISTS tracking_result (
	id                 BIGSERIAL PRIMARY KEY,
	session_id         TEXT NOT NULL,
	source             TEXT NOT NULL,
	mode               TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	ended_at           TIMESTAMPTZ NOT NULL,
	total_frames       INTEGER NOT NULL,
	analyzed_frames    INTEGER NOT NULL,
	dominant_emotion   TEXT NOT NULL,
	final_label        TEXT NOT NULL,
	center_ratio       DOUBLE PRECISION NOT NULL,
	focus              TEXT NOT NULL,
	tension            DOUBLE PRECISION NOT NULL,
	confidence         DOUBLE PRECISION NOT NULL,
	report             JSONB NOT NULL
)`

// Result is one stored tracking summary
type Result struct {
	ID              int64     `db:"id"`
	SessionID       string    `db:"session_id"`
	Source          string    `db:"source"`
	Mode            string    `db:"mode"`
	StartedAt       time.Time `db:"started_at"`
	EndedAt         time.Time `db:"ended_at"`
	TotalFrames     int       `db:"total_frames"`
	AnalyzedFrames  int       `db:"analyzed_frames"`
	DominantEmotion string    `db:"dominant_emotion"`
	FinalLabel      string    `db:"final_label"`
	CenterRatio     float64   `db:"center_ratio"`
	Focus           string    `db:"focus"`
	Tension         float64   `db:"tension"`
	Confidence      float64   `db:"confidence"`
	Report          []byte    `db:"report"`
}

// Decode returns the full report stored with the row
func (r *Result) Decode() (*session.Report, error) {
	var rep session.Report
	if err := json.Unmarshal(r.Report, &rep); err != nil {
		return nil, fmt.Errorf("decode report %d: %w", r.ID, err)
	}
	return &rep, nil
}

// ResultRepo stores tracking summaries in Postgres
type ResultRepo struct {
	db *sqlx.DB
}

// OpenDatabase connects to Postgres
func OpenDatabase(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// NewResultRepo creates a repository over db
func NewResultRepo(db *sqlx.DB) *ResultRepo {
	return &ResultRepo{db: db}
}

// Migrate creates the result table when missing
func (r *ResultRepo) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate tracking_result: %w", err)
	}
	return nil
}

// SaveResult inserts a report and returns the new row id
func (r *ResultRepo) SaveResult(ctx context.Context, rep *session.Report) (id int64, err error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return 0, fmt.Errorf("encode report: %w", err)
	}

	query := `INSERT INTO tracking_result 
				(
				session_id, 
				source, 
				mode, 
				started_at, 
				ended_at, 
				total_frames, 
				analyzed_frames, 
				dominant_emotion, 
				final_label, 
				center_ratio, 
				focus, 
				tension, 
				confidence, 
				report
				) 
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) 
			RETURNING id`

	if err = r.db.QueryRowContext(ctx, query,
		rep.SessionID,
		rep.Source,
		string(rep.Mode),
		rep.StartedAt,
		rep.EndedAt,
		rep.TotalFrames,
		rep.AnalyzedFrames,
		rep.DominantEmotion,
		rep.FinalLabel,
		rep.Gaze.CenterRatio,
		rep.Gaze.Focus,
		rep.Tension,
		rep.Confidence,
		data,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert tracking result: %w", err)
	}

	return id, nil
}

const resultColumns = `id, 
				session_id, 
				source, 
				mode, 
				started_at, 
				ended_at, 
				total_frames, 
				analyzed_frames, 
				dominant_emotion, 
				final_label, 
				center_ratio, 
				focus, 
				tension, 
				confidence, 
				report`

// GetResult retrieves a result by id
func (r *ResultRepo) GetResult(ctx context.Context, id int64) (*Result, error) {
	res := &Result{}

	query := `SELECT ` + resultColumns + ` 
			FROM tracking_result 
			WHERE id=$1`

	if err := r.db.GetContext(ctx, res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrResultNotFound, id)
		}
		return nil, fmt.Errorf("get tracking result: %w", err)
	}
	return res, nil
}

// ListRecent returns the newest results first
func (r *ResultRepo) ListRecent(ctx context.Context, limit int) ([]*Result, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + resultColumns + ` 
			FROM tracking_result 
			ORDER BY started_at DESC 
			LIMIT $1`

	var results []*Result
	if err := r.db.SelectContext(ctx, &results, query, limit); err != nil {
		return nil, fmt.Errorf("list tracking results: %w", err)
	}
	return results, nil
}
