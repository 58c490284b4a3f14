// Package partition manages the weekly issue_events tables. sqlite has no
// native partitioning, so each ISO week gets its own table that the
// retention job can drop in O(1) instead of deleting rows.
package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
)

const tablePrefix = "issue_events_"

// Name returns the partition table for the given instant, e.g.
// issue_events_2026w35.
func Name(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%s%dw%02d", tablePrefix, year, week)
}

type Manager struct {
	db    *gorm.DB
	mu    sync.Mutex
	known map[string]struct{}
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:    db,
		known: make(map[string]struct{}),
	}
}

// Ensure creates the partition table for t if it does not exist and returns
// its name. Created tables are remembered so the hot path pays the DDL
// check once per week per process.
func (m *Manager) Ensure(ctx context.Context, t time.Time) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	name := Name(t)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.known[name]; ok {
		return name, nil
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			event_id text PRIMARY KEY,
			issue_id integer NOT NULL,
			type integer NOT NULL DEFAULT 0,
			created text NOT NULL,
			payload text NOT NULL
		)`, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(issue_id)`, "idx_"+name+"_issue_id", name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(created)`, "idx_"+name+"_created", name),
	}
	for _, stmt := range ddl {
		if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return "", errs.Wrapf(err, "create partition %q", name)
		}
	}

	m.known[name] = struct{}{}
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "partition.manager")),
		"event partition ensured", slog.String("table", name))
	return name, nil
}

// List returns all existing partition tables, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	var names []string
	if err := m.db.WithContext(ctx).
		Raw(`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ?`, tablePrefix+"%").
		Scan(&names).Error; err != nil {
		return nil, errs.Wrap(err, "list partitions")
	}

	sort.Strings(names)
	return names, nil
}

// PruneBefore drops partitions whose week ended before cutoff and returns
// the dropped table names. The hot ingestion path never calls this; it is
// the scheduled retention surface.
func (m *Manager) PruneBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	names, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, name := range names {
		start, ok := weekStart(name)
		if !ok {
			continue
		}
		if start.AddDate(0, 0, 7).After(cutoff.UTC()) {
			continue
		}
		if err := m.db.WithContext(ctx).Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, name)).Error; err != nil {
			return dropped, errs.Wrapf(err, "drop partition %q", name)
		}
		m.mu.Lock()
		delete(m.known, name)
		m.mu.Unlock()
		dropped = append(dropped, name)
	}
	return dropped, nil
}

// weekStart parses issue_events_<year>w<week> back into the UTC Monday the
// week begins on.
func weekStart(name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, tablePrefix)
	if !ok {
		return time.Time{}, false
	}
	var year, week int
	if _, err := fmt.Sscanf(rest, "%dw%d", &year, &week); err != nil {
		return time.Time{}, false
	}
	if week < 1 || week > 53 {
		return time.Time{}, false
	}

	// Jan 4 is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -(int(jan4.Weekday())+6)%7)
	return monday.AddDate(0, 0, (week-1)*7), true
}
