package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/leaderboard"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &DB{db}, nil
}

// RunMigrations executes the embedded SQL migrations in file name order
func (db *DB) RunMigrations(ctx context.Context, logger zerolog.Logger) error {
	files, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		logger.Info().Str("migration", filename).Msg("running migration")

		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	logger.Info().Int("count", len(sqlFiles)).Msg("migrations completed")
	return nil
}

// UpsertUser inserts or updates a user's profile fields
func (db *DB) UpsertUser(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, email, country)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email,
		    country = EXCLUDED.country,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query, u.Username, u.Email, u.Country)
	return err
}

// GetUser retrieves a user by name. A missing user is nil with no error.
func (db *DB) GetUser(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT username, email, country, total_count, streak, last_active, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	var u User
	var lastActive sql.NullTime
	err := db.QueryRowContext(ctx, query, username).Scan(
		&u.Username,
		&u.Email,
		&u.Country,
		&u.TotalCount,
		&u.Streak,
		&lastActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastActive.Valid {
		u.LastActive = &lastActive.Time
	}
	return &u, nil
}

// RecordCount adds n tasbeeh repetitions for a user on day and advances the
// daily streak by NextStreak.
func (db *DB) RecordCount(ctx context.Context, username string, day time.Time, n int) error {
	if n <= 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	dayStr := day.Format(dateLayout)

	var streak int
	var lastActive sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT streak, last_active FROM users WHERE username = $1 FOR UPDATE`,
		username,
	).Scan(&streak, &lastActive)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert := `
			INSERT INTO users (username, total_count, streak, last_active)
			VALUES ($1, $2, 1, $3::date)
		`
		if _, err := tx.ExecContext(ctx, insert, username, n, dayStr); err != nil {
			return fmt.Errorf("failed to create user totals: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read user totals: %w", err)
	default:
		var last *time.Time
		if lastActive.Valid {
			last = &lastActive.Time
		}
		next := NextStreak(streak, last, day)
		activeStr := dayStr
		if last != nil && calendarDay(day).Before(calendarDay(*last)) {
			activeStr = last.Format(dateLayout)
		}

		update := `
			UPDATE users
			SET total_count = total_count + $2,
			    streak = $3,
			    last_active = $4::date,
			    updated_at = CURRENT_TIMESTAMP
			WHERE username = $1
		`
		if _, err := tx.ExecContext(ctx, update, username, n, next, activeStr); err != nil {
			return fmt.Errorf("failed to update user totals: %w", err)
		}
	}

	dailyQuery := `
		INSERT INTO tasbeeh_daily (username, day, count)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (username, day) DO UPDATE
		SET count = tasbeeh_daily.count + EXCLUDED.count
	`
	if _, err := tx.ExecContext(ctx, dailyQuery, username, dayStr, n); err != nil {
		return fmt.Errorf("failed to update daily count: %w", err)
	}

	return tx.Commit()
}

// LeaderboardEntries sums each user's counts from since onward, unranked.
// A zero since counts all time.
func (db *DB) LeaderboardEntries(ctx context.Context, since time.Time, limit int) ([]leaderboard.Entry, error) {
	var rows *sql.Rows
	var err error

	if since.IsZero() {
		query := `
			SELECT username, country, total_count, streak
			FROM users
			ORDER BY total_count DESC, username
			LIMIT $1
		`
		rows, err = db.QueryContext(ctx, query, limit)
	} else {
		query := `
			SELECT u.username, u.country, COALESCE(SUM(d.count), 0) AS total, u.streak
			FROM users u
			LEFT JOIN tasbeeh_daily d ON d.username = u.username AND d.day >= $1::date
			GROUP BY u.username, u.country, u.streak
			ORDER BY total DESC, u.username
			LIMIT $2
		`
		rows, err = db.QueryContext(ctx, query, since.Format(dateLayout), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []leaderboard.Entry
	for rows.Next() {
		var e leaderboard.Entry
		if err := rows.Scan(&e.Name, &e.Country, &e.Count, &e.Streak); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// InsertAlertLogs writes a batch of alert records in one transaction.
// Records already present are skipped.
func (db *DB) InsertAlertLogs(ctx context.Context, logs []*AlertLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts_log (
			alert_id, prayer, place, adjusted_time, scheduled_at, fired_at, sound, hijri
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (alert_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		if _, err := stmt.ExecContext(ctx,
			l.AlertID,
			l.Prayer,
			l.Place,
			l.AdjustedTime,
			l.ScheduledAt,
			l.FiredAt,
			l.Sound,
			l.Hijri,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", l.AlertID, err)
		}
	}

	return tx.Commit()
}

// RecentAlerts returns the latest alert records, newest first
func (db *DB) RecentAlerts(ctx context.Context, limit int) ([]*AlertLog, error) {
	query := `
		SELECT alert_id, prayer, place, adjusted_time, scheduled_at, fired_at, sound, hijri, recorded_at
		FROM alerts_log
		ORDER BY scheduled_at DESC
		LIMIT $1
	`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*AlertLog
	for rows.Next() {
		var l AlertLog
		if err := rows.Scan(
			&l.AlertID,
			&l.Prayer,
			&l.Place,
			&l.AdjustedTime,
			&l.ScheduledAt,
			&l.FiredAt,
			&l.Sound,
			&l.Hijri,
			&l.RecordedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
