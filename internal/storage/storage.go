package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"telegram-emotion-diary/internal/models"
)

//go:embed schema_sqlite.sql schema_postgres.sql
var ddl embed.FS

// Options tune the connection pool shared by conversations and the reminder job.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// QueryTimeout bounds both the wait for a pooled connection and the query itself.
	QueryTimeout time.Duration
	// Location defines the calendar day used for cycle-day dedup.
	Location *time.Location
	Clock    clockwork.Clock
}

// DB is the persistence layer. Create one with New and Close it on shutdown.
type DB struct {
	*sql.DB
	dialect      dialect
	clock        clockwork.Clock
	loc          *time.Location
	queryTimeout time.Duration
}

// New opens the database behind dsn, applies the schema and configures the pool.
// A postgres:// or postgresql:// dsn selects PostgreSQL, anything else is a SQLite file path.
func New(ctx context.Context, dsn string, opts Options) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("open: empty database url")
	}

	d := dialectFor(dsn)
	driverDSN := dsn
	if d == sqliteDialect {
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open: create db dir: %w", err)
		}
		driverDSN = "file:" + path +
			"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	}

	sqlDB, err := sql.Open(d.driver(), driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	db := &DB{
		DB:           sqlDB,
		dialect:      d,
		clock:        opts.Clock,
		loc:          opts.Location,
		queryTimeout: opts.QueryTimeout,
	}
	if db.clock == nil {
		db.clock = clockwork.NewRealClock()
	}
	if db.loc == nil {
		db.loc = time.UTC
	}

	pingCtx, cancel := db.scope(ctx)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}

	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open: migrate: %w", err)
	}
	return db, nil
}

func (d *DB) migrate(ctx context.Context) error {
	b, err := ddl.ReadFile(d.dialect.schemaFile())
	if err != nil {
		return err
	}
	ctx, cancel := d.scope(ctx)
	defer cancel()
	_, err = d.ExecContext(ctx, string(b))
	return err
}

// scope bounds one call: waiting for a pooled connection plus running the query.
func (d *DB) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

func (d *DB) q(query string) string {
	return d.dialect.rebind(query)
}

func (d *DB) now() time.Time {
	return d.clock.Now().UTC()
}

// todayBounds returns [start, end) of the current calendar day in UTC.
func (d *DB) todayBounds() (time.Time, time.Time) {
	local := d.clock.Now().In(d.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// ---------- users -----------------------------------------------------------

// UpsertUser inserts the user or updates name and gender in place.
func (d *DB) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	_, err := d.ExecContext(ctx, d.q(`
        INSERT INTO users (id, name, gender, created_at)
        VALUES (?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET name=excluded.name,
            gender=excluded.gender
    `), u.ID, u.Name, u.Gender, d.now())
	return wrap("upsert_user", u.ID, err)
}

// GetUser returns nil, nil when the user is not registered.
func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	var (
		u      models.User
		gender sql.NullString
	)
	err := d.QueryRowContext(ctx, d.q(`
        SELECT id, name, gender, created_at
        FROM users WHERE id=?`), id,
	).Scan(&u.ID, &u.Name, &gender, &u.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get_user", id, err)
	}
	u.Gender = gender.String
	return &u, nil
}

// ListRegisteredUserIDs returns every distinct user id.
func (d *DB) ListRegisteredUserIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	rows, err := d.QueryContext(ctx, `SELECT DISTINCT id FROM users ORDER BY id`)
	if err != nil {
		return nil, wrap("list_users", 0, err)
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("list_users", 0, err)
		}
		res = append(res, id)
	}
	return res, wrap("list_users", 0, rows.Err())
}

// ---------- entries ---------------------------------------------------------

// InsertEntry stores a completed entry in one transaction and fills e.ID and e.CreatedAt.
// It fails with ErrUserNotFound when the owner is not registered.
func (d *DB) InsertEntry(ctx context.Context, e *models.DiaryEntry) error {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return wrap("insert_entry", e.UserID, err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, d.q(`SELECT 1 FROM users WHERE id=?`), e.UserID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return wrap("insert_entry", e.UserID, ErrUserNotFound)
	}
	if err != nil {
		return wrap("insert_entry", e.UserID, err)
	}

	var cycleDay sql.NullInt64
	if e.CycleDay != nil {
		cycleDay = sql.NullInt64{Int64: int64(*e.CycleDay), Valid: true}
	}
	createdAt := d.now()

	var id int64
	err = tx.QueryRowContext(ctx, d.q(`
        INSERT INTO entries (
            user_id, hunger_before, satiety_after, emotion, sleep_hours,
            location, company, phone, cycle_day, binge_eating, created_at
        ) VALUES (?,?,?,?,?,?,?,?,?,?,?)
        RETURNING id
    `), e.UserID, e.HungerBefore, e.SatietyAfter, e.Emotion, e.SleepHours,
		e.Location, e.Company, e.Phone, cycleDay, e.BingeEating, createdAt,
	).Scan(&id)
	if err != nil {
		return wrap("insert_entry", e.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return wrap("insert_entry", e.UserID, err)
	}
	e.ID = id
	e.CreatedAt = createdAt
	return nil
}

// ListRecentEntries returns up to limit entries of the user, newest first.
func (d *DB) ListRecentEntries(ctx context.Context, userID int64, limit int) ([]models.DiaryEntry, error) {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	rows, err := d.QueryContext(ctx, d.q(`
        SELECT id, user_id, hunger_before, satiety_after, emotion, sleep_hours,
               location, company, phone, cycle_day, binge_eating, created_at
        FROM entries
        WHERE user_id = ?
        ORDER BY created_at DESC, id DESC
        LIMIT ?
    `), userID, limit)
	if err != nil {
		return nil, wrap("list_entries", userID, err)
	}
	defer rows.Close()

	var res []models.DiaryEntry
	for rows.Next() {
		var (
			e        models.DiaryEntry
			cycleDay sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.HungerBefore, &e.SatietyAfter, &e.Emotion, &e.SleepHours,
			&e.Location, &e.Company, &e.Phone, &cycleDay, &e.BingeEating, &e.CreatedAt,
		); err != nil {
			return nil, wrap("list_entries", userID, err)
		}
		if cycleDay.Valid {
			v := int(cycleDay.Int64)
			e.CycleDay = &v
		}
		res = append(res, e)
	}
	return res, wrap("list_entries", userID, rows.Err())
}

// ---------- cycle days ------------------------------------------------------

// LastCycleDayForToday returns the latest cycle day recorded today; ok is false when none.
func (d *DB) LastCycleDayForToday(ctx context.Context, userID int64) (day int, ok bool, err error) {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	from, to := d.todayBounds()
	err = d.QueryRowContext(ctx, d.q(`
        SELECT cycle_day
        FROM cycle_days
        WHERE user_id = ? AND created_at >= ? AND created_at < ?
        ORDER BY created_at DESC, id DESC
        LIMIT 1
    `), userID, from, to).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("last_cycle_day", userID, err)
	}
	return day, true, nil
}

// InsertCycleDayRecord appends a record; earlier days are kept.
func (d *DB) InsertCycleDayRecord(ctx context.Context, userID int64, day int) error {
	ctx, cancel := d.scope(ctx)
	defer cancel()

	_, err := d.ExecContext(ctx, d.q(`
        INSERT INTO cycle_days (user_id, cycle_day, created_at) VALUES (?,?,?)
    `), userID, day, d.now())
	return wrap("insert_cycle_day", userID, err)
}
