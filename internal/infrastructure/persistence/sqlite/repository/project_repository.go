package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/model"
	"faultline/internal/ports"
)

type ProjectRepository struct {
	db *gorm.DB
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *ProjectRepository) LookupByKey(ctx context.Context, projectID uint64, publicKey string) (ports.Project, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Project{}, err
	}

	var row struct {
		ProjectID         uint64
		OrganizationID    uint64
		ScrubIPAddresses  bool
		IsAcceptingEvents bool
	}
	if err := db.Table("projects").
		Select("projects.project_id AS project_id, projects.organization_id AS organization_id, "+
			"projects.scrub_ip_addresses AS scrub_ip_addresses, organizations.is_accepting_events AS is_accepting_events").
		Joins("JOIN project_keys ON project_keys.project_id = projects.project_id").
		Joins("JOIN organizations ON organizations.organization_id = projects.organization_id").
		Where("projects.project_id = ? AND project_keys.public_key = ?", projectID, publicKey).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Project{}, ports.ErrProjectNotFound
		}
		return ports.Project{}, errs.Wrap(err, "query project by key")
	}

	return ports.Project{
		ProjectID:         row.ProjectID,
		OrganizationID:    row.OrganizationID,
		ScrubIPAddresses:  row.ScrubIPAddresses,
		IsAcceptingEvents: row.IsAcceptingEvents,
	}, nil
}

func (r *ProjectRepository) Seed(ctx context.Context, seed ports.ProjectSeed) (ports.ProjectSeedResult, error) {
	if ctx == nil {
		return ports.ProjectSeedResult{}, errors.New("context is required")
	}

	var out ports.ProjectSeedResult
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org := model.Organization{
			Name:              seed.OrganizationName,
			IsAcceptingEvents: true,
			CreatedAt:         seed.CreatedAt,
		}
		if err := tx.Create(&org).Error; err != nil {
			return errs.Wrap(err, "insert organization")
		}

		project := model.Project{
			OrganizationID:   org.OrganizationID,
			Name:             seed.ProjectName,
			ScrubIPAddresses: true,
			CreatedAt:        seed.CreatedAt,
		}
		if err := tx.Create(&project).Error; err != nil {
			return errs.Wrap(err, "insert project")
		}

		key := model.ProjectKey{
			ProjectID: project.ProjectID,
			PublicKey: seed.PublicKey,
			Label:     "default",
			CreatedAt: seed.CreatedAt,
		}
		if err := tx.Create(&key).Error; err != nil {
			return errs.Wrap(err, "insert project key")
		}

		out = ports.ProjectSeedResult{
			OrganizationID: org.OrganizationID,
			ProjectID:      project.ProjectID,
			PublicKey:      key.PublicKey,
		}
		return nil
	}); err != nil {
		return ports.ProjectSeedResult{}, err
	}
	return out, nil
}

func (r *ProjectRepository) SetAcceptingEvents(ctx context.Context, organizationID uint64, accepting bool) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Organization{}).
		Where("organization_id = ?", organizationID).
		Update("is_accepting_events", accepting).Error; err != nil {
		return errs.Wrap(err, "update organization accepting flag")
	}
	return nil
}
