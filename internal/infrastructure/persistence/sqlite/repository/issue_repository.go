package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/infrastructure/persistence/sqlite/partition"
	"faultline/internal/ports"
)

type IssueRepository struct {
	db         *gorm.DB
	partitions *partition.Manager
}

var _ ports.IssueRepository = (*IssueRepository)(nil)

func NewIssueRepository(db *gorm.DB, partitions *partition.Manager) *IssueRepository {
	return &IssueRepository{db: db, partitions: partitions}
}

func (r *IssueRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *IssueRepository) FindHashes(ctx context.Context, pairs []ports.HashPair) ([]ports.IssueHashRow, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	cond := db.Where("project_id = ? AND value = ?", pairs[0].ProjectID, pairs[0].Value)
	for _, pair := range pairs[1:] {
		cond = cond.Or("project_id = ? AND value = ?", pair.ProjectID, pair.Value)
	}

	var rows []model.IssueHash
	if err := db.Model(&model.IssueHash{}).Where(cond).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query issue hashes")
	}

	items := make([]ports.IssueHashRow, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.IssueHashRow{
			ProjectID: row.ProjectID,
			IssueID:   row.IssueID,
			Value:     row.Value,
		})
	}
	return items, nil
}

// CreateIssueForHash creates Issue + IssueHash in one transaction. This is
// a retry-on-conflict pattern, not a lock: when the (project_id, value)
// unique index rejects the hash row, a concurrent writer already created
// the issue, so the loser rolls back and re-reads the winning row. A naive
// get-or-create without this fallback drops or duplicates issues under
// concurrent load.
func (r *IssueRepository) CreateIssueForHash(ctx context.Context, input ports.IssueCreate) (uint64, bool, error) {
	if ctx == nil {
		return 0, false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return 0, false, errs.Wrap(err, "check context")
	}

	var issueID uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var nextShortID uint64
		if err := tx.Raw(
			`SELECT COALESCE(MAX(short_id), 0) + 1 FROM issues WHERE project_id = ?`,
			input.ProjectID,
		).Scan(&nextShortID).Error; err != nil {
			return errs.Wrap(err, "next short id")
		}

		issue := model.Issue{
			ProjectID: input.ProjectID,
			ShortID:   nextShortID,
			Title:     input.Title,
			Culprit:   input.Culprit,
			Type:      input.Type,
			Status:    ports.IssueStatusUnresolved,
			Level:     input.Level,
			FirstSeen: input.Seen,
			LastSeen:  input.Seen,
		}
		if err := tx.Create(&issue).Error; err != nil {
			return errs.Wrap(err, "insert issue")
		}

		hash := model.IssueHash{
			ProjectID: input.ProjectID,
			IssueID:   issue.IssueID,
			Value:     input.HashValue,
		}
		if err := tx.Create(&hash).Error; err != nil {
			return err
		}

		issueID = issue.IssueID
		return nil
	})
	if err == nil {
		return issueID, true, nil
	}
	if !isDuplicateKey(err) {
		return 0, false, errs.Wrap(err, "create issue for hash")
	}

	// Lost the race: the hash row now exists, read the winner.
	var row model.IssueHash
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND value = ?", input.ProjectID, input.HashValue).
		Take(&row).Error; err != nil {
		return 0, false, errs.Wrap(err, "reread issue hash after conflict")
	}
	return row.IssueID, false, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *IssueRepository) GetIssue(ctx context.Context, issueID uint64) (ports.Issue, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Issue{}, err
	}

	var row model.Issue
	if err := db.Where("issue_id = ?", issueID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Issue{}, ports.ErrIssueNotFound
		}
		return ports.Issue{}, errs.Wrap(err, "query issue")
	}

	return ports.Issue{
		IssueID:   row.IssueID,
		ProjectID: row.ProjectID,
		ShortID:   row.ShortID,
		Title:     row.Title,
		Culprit:   row.Culprit,
		Type:      row.Type,
		Status:    row.Status,
		Level:     row.Level,
		Count:     row.Count,
		FirstSeen: row.FirstSeen,
		LastSeen:  row.LastSeen,
	}, nil
}

func (r *IssueRepository) RecordSeen(ctx context.Context, counts map[uint64]uint64, seen string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	for issueID, n := range counts {
		if err := db.Model(&model.Issue{}).
			Where("issue_id = ?", issueID).
			Updates(map[string]any{
				"count":     gorm.Expr("count + ?", n),
				"last_seen": seen,
			}).Error; err != nil {
			return errs.Wrap(err, "bump issue counters")
		}
	}
	return nil
}

func (r *IssueRepository) ReopenResolved(ctx context.Context, issueIDs []uint64) ([]uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(issueIDs) == 0 {
		return nil, nil
	}

	var resolved []uint64
	if err := db.Model(&model.Issue{}).
		Where("issue_id IN ? AND status = ?", issueIDs, ports.IssueStatusResolved).
		Pluck("issue_id", &resolved).Error; err != nil {
		return nil, errs.Wrap(err, "query resolved issues")
	}
	if len(resolved) == 0 {
		return nil, nil
	}

	if err := db.Model(&model.Issue{}).
		Where("issue_id IN ?", resolved).
		Update("status", ports.IssueStatusUnresolved).Error; err != nil {
		return nil, errs.Wrap(err, "reopen resolved issues")
	}
	return resolved, nil
}

func (r *IssueRepository) InsertEvents(ctx context.Context, events []ports.IssueEventCreate) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(events) == 0 {
		return nil
	}

	// Route rows to their weekly partition, one bulk insert per table.
	grouped := make(map[string][]model.IssueEvent)
	for _, input := range events {
		created, err := time.Parse(time.RFC3339Nano, input.Created)
		if err != nil {
			created = time.Now().UTC()
		}
		name, err := r.partitions.Ensure(ctx, created)
		if err != nil {
			return err
		}
		grouped[name] = append(grouped[name], model.IssueEvent{
			EventID: input.EventID,
			IssueID: input.IssueID,
			Type:    input.Type,
			Created: input.Created,
			Payload: input.Payload,
		})
	}

	for name, rows := range grouped {
		if err := r.db.WithContext(ctx).Table(name).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rows).Error; err != nil {
			return errs.Wrapf(err, "insert events into %q", name)
		}
	}
	return nil
}

func (r *IssueRepository) CountIssueEvents(ctx context.Context, issueID uint64) (int64, error) {
	names, err := r.partitions.List(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, name := range names {
		var count int64
		if err := r.db.WithContext(ctx).Table(name).
			Where("issue_id = ?", issueID).
			Count(&count).Error; err != nil {
			return 0, errs.Wrapf(err, "count events in %q", name)
		}
		total += count
	}
	return total, nil
}

func (r *IssueRepository) ListIssueEvents(ctx context.Context, issueID uint64, limit int) ([]ports.IssueEventCreate, error) {
	names, err := r.partitions.List(ctx)
	if err != nil {
		return nil, err
	}

	var items []ports.IssueEventCreate
	for _, name := range names {
		if limit > 0 && len(items) >= limit {
			break
		}
		query := r.db.WithContext(ctx).Table(name).
			Where("issue_id = ?", issueID).
			Order("created asc")
		if limit > 0 {
			query = query.Limit(limit - len(items))
		}

		var rows []model.IssueEvent
		if err := query.Find(&rows).Error; err != nil {
			return nil, errs.Wrapf(err, "query events in %q", name)
		}
		for _, row := range rows {
			items = append(items, ports.IssueEventCreate{
				EventID: row.EventID,
				IssueID: row.IssueID,
				Type:    row.Type,
				Created: row.Created,
				Payload: row.Payload,
			})
		}
	}
	return items, nil
}
