// Package session persists the agent's login state and presence history
// across restarts.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/thermolearn/home-agent/internal/geo"
	"github.com/thermolearn/home-agent/internal/presence"

	_ "modernc.org/sqlite"
)

// Well-known session keys.
const (
	keyToken              = "userToken"
	keyUserID             = "userId"
	keyThermostatID       = "thermostatId"
	keyStagedThermostatID = "tempThermostatId"
	keyHomeLatitude       = "homeLatitude"
	keyHomeLongitude      = "homeLongitude"
	keyFirstName          = "firstName"
	keyAtHome             = "isAtHome"
)

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE TABLE IF NOT EXISTS presence_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			distance_m REAL NOT NULL,
			at_home INTEGER NOT NULL,
			occurred_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_presence_events_time ON presence_events(occurred_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// Get returns the value for a session key. ok is false when the key is
// not set.
func (s *Store) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?;`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a session key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session (key, value, updated_at) VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes a session key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?;`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear removes the whole session. Presence history is kept.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session;`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Token returns the stored auth token, or "" when logged out.
func (s *Store) Token(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, keyToken)
	return v, err
}

// SetToken stores the auth token.
func (s *Store) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, keyToken, token)
}

// UserID returns the stored user id. ok is false when logged out.
func (s *Store) UserID(ctx context.Context) (id int64, ok bool, err error) {
	v, ok, err := s.Get(ctx, keyUserID)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err = strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", keyUserID, err)
	}
	return id, true, nil
}

// SetUserID stores the user id.
func (s *Store) SetUserID(ctx context.Context, id int64) error {
	return s.Set(ctx, keyUserID, strconv.FormatInt(id, 10))
}

// FirstName returns the stored display name.
func (s *Store) FirstName(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, keyFirstName)
	return v, err
}

// SetFirstName stores the display name.
func (s *Store) SetFirstName(ctx context.Context, name string) error {
	return s.Set(ctx, keyFirstName, name)
}

// ThermostatID returns the paired thermostat id, or "" when unpaired.
func (s *Store) ThermostatID(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, keyThermostatID)
	return v, err
}

// SetThermostatID stores the paired thermostat id and drops any staged
// one.
func (s *Store) SetThermostatID(ctx context.Context, id string) error {
	if err := s.Set(ctx, keyThermostatID, id); err != nil {
		return err
	}
	return s.Delete(ctx, keyStagedThermostatID)
}

// ClearThermostatID removes the paired thermostat id.
func (s *Store) ClearThermostatID(ctx context.Context) error {
	return s.Delete(ctx, keyThermostatID)
}

// StagedThermostatID returns the thermostat id of an in-flight pairing
// attempt.
func (s *Store) StagedThermostatID(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, keyStagedThermostatID)
	return v, err
}

// SetStagedThermostatID records the thermostat id of an in-flight
// pairing attempt.
func (s *Store) SetStagedThermostatID(ctx context.Context, id string) error {
	return s.Set(ctx, keyStagedThermostatID, id)
}

// ClearStagedThermostatID removes the staged thermostat id.
func (s *Store) ClearStagedThermostatID(ctx context.Context) error {
	return s.Delete(ctx, keyStagedThermostatID)
}

// HomeLocation returns the committed home location. ok is false when no
// home has been set.
func (s *Store) HomeLocation(ctx context.Context) (p geo.Point, ok bool, err error) {
	latRaw, okLat, err := s.Get(ctx, keyHomeLatitude)
	if err != nil || !okLat {
		return geo.Point{}, false, err
	}
	lonRaw, okLon, err := s.Get(ctx, keyHomeLongitude)
	if err != nil || !okLon {
		return geo.Point{}, false, err
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("parse %s: %w", keyHomeLatitude, err)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return geo.Point{}, false, fmt.Errorf("parse %s: %w", keyHomeLongitude, err)
	}
	return geo.Point{Latitude: lat, Longitude: lon}, true, nil
}

// SetHomeLocation commits a home location.
func (s *Store) SetHomeLocation(ctx context.Context, p geo.Point) error {
	if err := s.Set(ctx, keyHomeLatitude, strconv.FormatFloat(p.Latitude, 'f', -1, 64)); err != nil {
		return err
	}
	return s.Set(ctx, keyHomeLongitude, strconv.FormatFloat(p.Longitude, 'f', -1, 64))
}

// AtHome returns the persisted presence flag. Absent means at home.
func (s *Store) AtHome(ctx context.Context) (bool, error) {
	v, ok, err := s.Get(ctx, keyAtHome)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	return v == "true", nil
}

// SetAtHome persists the presence flag.
func (s *Store) SetAtHome(ctx context.Context, atHome bool) error {
	return s.Set(ctx, keyAtHome, strconv.FormatBool(atHome))
}

// AppendPresenceEvent records a presence transition.
func (s *Store) AppendPresenceEvent(ctx context.Context, ev presence.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presence_events (event_type, distance_m, at_home, occurred_at) VALUES (?, ?, ?, ?);`,
		string(ev.Type),
		ev.DistanceMeters,
		boolToInt(ev.AtHome),
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert presence event: %w", err)
	}
	return nil
}

// RecentPresenceEvents returns the most recent transitions, newest first.
func (s *Store) RecentPresenceEvents(ctx context.Context, limit int) ([]presence.Event, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_type, distance_m, at_home, occurred_at FROM presence_events ORDER BY id DESC LIMIT ?;`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query presence events: %w", err)
	}
	defer rows.Close()

	var events []presence.Event
	for rows.Next() {
		var (
			eventType  string
			distance   float64
			atHome     int
			occurredAt string
		)
		if err := rows.Scan(&eventType, &distance, &atHome, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan presence event: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		events = append(events, presence.Event{
			Timestamp:      ts,
			Type:           presence.EventType(eventType),
			DistanceMeters: distance,
			AtHome:         atHome != 0,
		})
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
