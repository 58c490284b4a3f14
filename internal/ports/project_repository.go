package ports

import (
	"context"
	"errors"
)

var ErrProjectNotFound = errors.New("project not found")

// Project is the minimal projection the ingest pipeline is allowed to see.
// Organization/billing state stays behind the repository; nothing downstream
// of the gate may query it again.
type Project struct {
	ProjectID         uint64
	OrganizationID    uint64
	ScrubIPAddresses  bool
	IsAcceptingEvents bool
}

type ProjectSeed struct {
	OrganizationName string
	ProjectName      string
	PublicKey        string
	CreatedAt        string
}

type ProjectSeedResult struct {
	OrganizationID uint64
	ProjectID      uint64
	PublicKey      string
}

type ProjectRepository interface {
	// LookupByKey resolves a project by id and DSN public key.
	// Returns ErrProjectNotFound when the pair does not exist.
	LookupByKey(ctx context.Context, projectID uint64, publicKey string) (Project, error)

	// Seed creates an organization, project, and key in one transaction.
	Seed(ctx context.Context, seed ProjectSeed) (ProjectSeedResult, error)

	SetAcceptingEvents(ctx context.Context, organizationID uint64, accepting bool) error
}
