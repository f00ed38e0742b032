/*
Package sqlite provides the SQLite-backed implementation of the
schedule storage interfaces.

PURPOSE:
  Implements schedule.Store using database/sql with the mattn/go-sqlite3
  driver. Dynamic filtered queries (assignment range scans, request
  overlap scans) are built with squirrel; fixed-shape statements stay
  as plain SQL.

KEY TABLES:
  providers, services:            reference data
  schedule_assignments:           the rota itself
  provider_availability_rules:    allow/block constraints
  pto_requests, provider_leaves:  the leave lifecycle
  provider_pto_config,
  pto_role_defaults:              allowance resolution inputs
  week_templates:                 alternating rota templates
  schedule_change_history:        the reversible bulk-operation journal

UNIQUENESS:
  There is deliberately NO unique index on (date, service_id,
  time_block). Slot occupancy checks are advisory and happen before the
  insert, so two racing writers can both succeed. See the schedule
  package comment.

WAL MODE:
  Opened with WAL (Write-Ahead Logging) for better read concurrency
  and crash recovery.

USAGE:
  store, err := sqlite.New("./data/rota.db")   // or ":memory:" for tests
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

const timeLayout = time.RFC3339

// Store implements schedule.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ schedule.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		initials TEXT NOT NULL,
		role TEXT NOT NULL,
		default_room_count INTEGER NOT NULL DEFAULT 0,
		capabilities TEXT,
		work_days TEXT
	);

	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		time_block TEXT NOT NULL,
		requires_rooms INTEGER NOT NULL DEFAULT 0,
		required_capability TEXT,
		show_on_main_calendar INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS schedule_assignments (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		service_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		time_block TEXT NOT NULL,
		room_count INTEGER NOT NULL DEFAULT 0,
		is_pto INTEGER NOT NULL DEFAULT 0,
		is_covering INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_provider_date
		ON schedule_assignments(provider_id, date);
	CREATE INDEX IF NOT EXISTS idx_assignments_slot
		ON schedule_assignments(date, service_id, time_block);

	CREATE TABLE IF NOT EXISTS provider_availability_rules (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		time_block TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		enforcement TEXT NOT NULL,
		reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_rules_pair
		ON provider_availability_rules(provider_id, service_id);

	CREATE TABLE IF NOT EXISTS pto_requests (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		time_block TEXT NOT NULL,
		status TEXT NOT NULL,
		requested_by TEXT,
		reviewer_name TEXT,
		reviewer_comment TEXT,
		created_at TEXT NOT NULL,
		reviewed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_pto_requests_provider_range
		ON pto_requests(provider_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS provider_leaves (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_leaves_range
		ON provider_leaves(start_date, end_date);

	CREATE TABLE IF NOT EXISTS provider_pto_config (
		provider_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		annual_allowance REAL,
		carryover_days REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (provider_id, year)
	);

	CREATE TABLE IF NOT EXISTS pto_role_defaults (
		role TEXT PRIMARY KEY,
		annual_allowance REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS week_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slots TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedule_change_history (
		id TEXT PRIMARY KEY,
		operation_type TEXT NOT NULL,
		description TEXT NOT NULL,
		affected_date_start TEXT NOT NULL,
		affected_date_end TEXT NOT NULL,
		deleted_assignments TEXT,
		created_assignment_ids TEXT,
		redo_assignments TEXT,
		is_undone INTEGER NOT NULL DEFAULT 0,
		undone_at TEXT,
		is_redone INTEGER NOT NULL DEFAULT 0,
		redone_at TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_created
		ON schedule_change_history(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROVIDERS
// =============================================================================

func (s *Store) SaveProvider(ctx context.Context, p schedule.Provider) error {
	caps, err := json.Marshal(p.Capabilities)
	if err != nil {
		return err
	}
	var workDays sql.NullString
	if p.WorkWeek != nil {
		days := make([]int, 0, 7)
		for _, wd := range p.WorkWeek.Weekdays() {
			days = append(days, int(wd))
		}
		b, err := json.Marshal(days)
		if err != nil {
			return err
		}
		workDays = sql.NullString{String: string(b), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO providers (id, name, initials, role, default_room_count, capabilities, work_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			initials = excluded.initials,
			role = excluded.role,
			default_room_count = excluded.default_room_count,
			capabilities = excluded.capabilities,
			work_days = excluded.work_days`,
		p.ID, p.Name, p.Initials, string(p.Role), p.DefaultRoomCount, string(caps), workDays)
	return err
}

func (s *Store) GetProvider(ctx context.Context, id string) (*schedule.Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, initials, role, default_room_count, capabilities, work_days
		FROM providers WHERE id = ?`, id)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListProviders(ctx context.Context) ([]schedule.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, initials, role, default_room_count, capabilities, work_days
		FROM providers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM providers WHERE id = ?`, id)
	return err
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(r rowScanner) (*schedule.Provider, error) {
	var p schedule.Provider
	var role string
	var caps, workDays sql.NullString
	if err := r.Scan(&p.ID, &p.Name, &p.Initials, &role, &p.DefaultRoomCount, &caps, &workDays); err != nil {
		return nil, err
	}
	p.Role = schedule.Role(role)
	if caps.Valid && caps.String != "" {
		if err := json.Unmarshal([]byte(caps.String), &p.Capabilities); err != nil {
			return nil, err
		}
	}
	if workDays.Valid && workDays.String != "" {
		var days []int
		if err := json.Unmarshal([]byte(workDays.String), &days); err != nil {
			return nil, err
		}
		week := make(calendar.WorkWeek, len(days))
		for _, d := range days {
			week[time.Weekday(d)] = true
		}
		p.WorkWeek = week
	}
	return &p, nil
}

// =============================================================================
// SERVICES
// =============================================================================

func (s *Store) SaveService(ctx context.Context, svc schedule.Service) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, name, time_block, requires_rooms, required_capability, show_on_main_calendar)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			time_block = excluded.time_block,
			requires_rooms = excluded.requires_rooms,
			required_capability = excluded.required_capability,
			show_on_main_calendar = excluded.show_on_main_calendar`,
		svc.ID, svc.Name, string(svc.TimeBlock), boolInt(svc.RequiresRooms),
		svc.RequiredCapability, boolInt(svc.ShowOnMainCalendar))
	return err
}

func (s *Store) GetService(ctx context.Context, id string) (*schedule.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, time_block, requires_rooms, required_capability, show_on_main_calendar
		FROM services WHERE id = ?`, id)
	svc, err := scanService(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context) ([]schedule.Service, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, time_block, requires_rooms, required_capability, show_on_main_calendar
		FROM services ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	return err
}

func scanService(r rowScanner) (*schedule.Service, error) {
	var svc schedule.Service
	var block string
	var requiresRooms, showOnMain int
	var capability sql.NullString
	if err := r.Scan(&svc.ID, &svc.Name, &block, &requiresRooms, &capability, &showOnMain); err != nil {
		return nil, err
	}
	svc.TimeBlock = calendar.TimeBlock(block)
	svc.RequiresRooms = requiresRooms != 0
	svc.ShowOnMainCalendar = showOnMain != 0
	svc.RequiredCapability = capability.String
	return &svc, nil
}

// =============================================================================
// AVAILABILITY RULES
// =============================================================================

func (s *Store) SaveRule(ctx context.Context, r schedule.AvailabilityRule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_availability_rules
			(id, provider_id, service_id, day_of_week, time_block, rule_type, enforcement, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day_of_week = excluded.day_of_week,
			time_block = excluded.time_block,
			rule_type = excluded.rule_type,
			enforcement = excluded.enforcement,
			reason = excluded.reason`,
		r.ID, r.ProviderID, r.ServiceID, int(r.DayOfWeek), string(r.TimeBlock),
		string(r.RuleType), string(r.Enforcement), r.Reason)
	return err
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM provider_availability_rules WHERE id = ?`, id)
	return err
}

func (s *Store) ListRulesForPair(ctx context.Context, providerID, serviceID string) ([]schedule.AvailabilityRule, error) {
	return s.queryRules(ctx, sq.Eq{"provider_id": providerID, "service_id": serviceID})
}

func (s *Store) ListRulesForSets(ctx context.Context, providerIDs, serviceIDs []string) ([]schedule.AvailabilityRule, error) {
	if len(providerIDs) == 0 || len(serviceIDs) == 0 {
		return nil, nil
	}
	return s.queryRules(ctx, sq.Eq{"provider_id": providerIDs, "service_id": serviceIDs})
}

func (s *Store) queryRules(ctx context.Context, where sq.Eq) ([]schedule.AvailabilityRule, error) {
	query, args, err := sq.Select("id", "provider_id", "service_id", "day_of_week",
		"time_block", "rule_type", "enforcement", "reason").
		From("provider_availability_rules").
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.AvailabilityRule
	for rows.Next() {
		var r schedule.AvailabilityRule
		var day int
		var block, ruleType, enforcement string
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.ProviderID, &r.ServiceID, &day, &block, &ruleType, &enforcement, &reason); err != nil {
			return nil, err
		}
		r.DayOfWeek = time.Weekday(day)
		r.TimeBlock = calendar.TimeBlock(block)
		r.RuleType = schedule.RuleType(ruleType)
		r.Enforcement = schedule.Enforcement(enforcement)
		r.Reason = reason.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func timePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
