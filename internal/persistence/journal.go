// Package persistence keeps an append-only SQLite journal of what happened
// to a city: buildings placed and removed, and the last epoch reached.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-city/internal/buildings"
	"github.com/talgya/mini-city/internal/clock"
	"github.com/talgya/mini-city/internal/observe"
)

// Event kinds as stored in the journal.
const (
	KindCreated   = "created"
	KindDestroyed = "destroyed"
)

const metaLastEpoch = "last_epoch"

// Event is one journal row.
type Event struct {
	ID    int64  `db:"id" json:"id"`
	Epoch uint64 `db:"epoch" json:"epoch"`
	Kind  string `db:"kind" json:"kind"`
	Q     int    `db:"q" json:"q"`
	R     int    `db:"r" json:"r"`
	Tile  string `db:"tile" json:"tile,omitempty"`
}

// Journal wraps a SQLite connection. Building events are buffered and
// written in one transaction per tock.
type Journal struct {
	conn *sqlx.DB

	mu      sync.Mutex
	pending []Event

	// Held here so the weak registrations live as long as the journal.
	onCreated   *observe.Func[buildings.BuildingCreated]
	onDestroyed *observe.Func[buildings.BuildingDestroyed]
	onTock      *observe.Func[clock.Tock]
}

// Open opens or creates a journal at the given path.
func Open(path string) (*Journal, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// One writer at a time; sqlite serializes them anyway.
	conn.SetMaxOpenConns(1)

	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

// Close flushes pending events and closes the database connection.
func (j *Journal) Close() error {
	return errors.Join(j.Flush(), j.conn.Close())
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		epoch INTEGER NOT NULL,
		kind TEXT NOT NULL,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		tile TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_epoch ON events(epoch);
	`
	_, err := j.conn.Exec(schema)
	return err
}

// Attach subscribes the journal to building changes and to every tock of c.
func (j *Journal) Attach(c *clock.Clock, b *buildings.Buildings) {
	created := observe.Func[buildings.BuildingCreated](func(e buildings.BuildingCreated) {
		j.record(Event{Epoch: e.Epoch, Kind: KindCreated, Q: e.Coordinate.Q, R: e.Coordinate.R, Tile: string(e.Tile)})
	})
	destroyed := observe.Func[buildings.BuildingDestroyed](func(e buildings.BuildingDestroyed) {
		j.record(Event{Epoch: e.Epoch, Kind: KindDestroyed, Q: e.Coordinate.Q, R: e.Coordinate.R})
	})
	tock := observe.Func[clock.Tock](func(e clock.Tock) {
		if err := j.flush(e.Epoch); err != nil {
			slog.Error("journal flush failed", "epoch", e.Epoch, "error", err)
		}
	})
	j.onCreated, j.onDestroyed, j.onTock = &created, &destroyed, &tock

	observe.Register(b.Created(), j.onCreated)
	observe.Register(b.Destroyed(), j.onDestroyed)
	observe.Register(c.Tockers(), j.onTock)
}

// record buffers e. Its epoch is the one stamped when the building changed,
// not the one current at delivery.
func (j *Journal) record(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, e)
}

// Flush writes buffered events without moving the recorded epoch.
func (j *Journal) Flush() error {
	return j.flush(0)
}

// flush writes buffered events and, when epoch is non-zero, records it as
// the last epoch reached.
func (j *Journal) flush(epoch uint64) error {
	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	if len(batch) == 0 && epoch == 0 {
		return nil
	}

	tx, err := j.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(batch) > 0 {
		_, err := tx.NamedExec(
			"INSERT INTO events (epoch, kind, q, r, tile) VALUES (:epoch, :kind, :q, :r, :tile)",
			batch,
		)
		if err != nil {
			return fmt.Errorf("save events: %w", err)
		}
	}
	if epoch > 0 {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
			metaLastEpoch, strconv.FormatUint(epoch, 10),
		)
		if err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (j *Journal) SaveMeta(key, value string) error {
	_, err := j.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (j *Journal) GetMeta(key string) (string, error) {
	var value string
	err := j.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// LastEpoch returns the last epoch flushed, if any.
func (j *Journal) LastEpoch() (uint64, bool, error) {
	v, err := j.GetMeta(metaLastEpoch)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	epoch, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", metaLastEpoch, err)
	}
	return epoch, true, nil
}

// SaveEpoch records epoch as the last one reached, flushing pending events.
func (j *Journal) SaveEpoch(epoch uint64) error {
	if epoch == 0 {
		return j.Flush()
	}
	return j.flush(epoch)
}

// RecentEvents returns the most recent N events, newest first.
func (j *Journal) RecentEvents(limit int) ([]Event, error) {
	var events []Event
	err := j.conn.Select(&events,
		"SELECT id, epoch, kind, q, r, tile FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// CountByKind returns how many events of each kind are stored.
func (j *Journal) CountByKind() (map[string]int, error) {
	var rows []struct {
		Kind  string `db:"kind"`
		Count int    `db:"n"`
	}
	if err := j.conn.Select(&rows, "SELECT kind, COUNT(*) AS n FROM events GROUP BY kind"); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Kind] = r.Count
	}
	return counts, nil
}
