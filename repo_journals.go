package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JournalProvisioner creates the default journal for an account on first
// login. Provisioning is idempotent.
type JournalProvisioner interface {
	ProvisionDefault(ctx context.Context, owner *Account) (*Journal, error)
}

type Journals interface {
	repository.Repository[*Journal]
	JournalProvisioner

	GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Journal, error)
}

type journals struct {
	repository.Repository[*Journal]
	db *bun.DB
}

var _ Journals = (*journals)(nil)

func NewJournalsRepository(db *bun.DB) Journals {
	repo := repository.NewRepository[*Journal](db, repository.ModelHandlers[*Journal]{
		NewRecord: func() *Journal { return &Journal{} },
		GetID: func(j *Journal) uuid.UUID {
			if j == nil {
				return uuid.Nil
			}
			return j.ID
		},
		SetID: func(j *Journal, id uuid.UUID) {
			if j != nil {
				j.ID = id
			}
		},
	})

	return &journals{
		Repository: repo,
		db:         db,
	}
}

func (j *journals) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Journal, error) {
	var records []*Journal

	err := j.db.NewSelect().Model(&records).
		Where("?TableAlias.owner_id = ?", ownerID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

// ProvisionDefault returns the owner's first journal, creating it along with
// its config when none exists yet. No transaction: a concurrent first login
// can at worst create a second journal, which is harmless.
func (j *journals) ProvisionDefault(ctx context.Context, owner *Account) (*Journal, error) {
	existing, err := j.GetByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		return existing[0], nil
	}

	record := &Journal{
		ID:      uuid.New(),
		OwnerID: owner.ID,
		Title:   DefaultJournalTitle,
	}

	created, err := j.Repository.CreateTx(ctx, j.db, record)
	if err != nil {
		return nil, err
	}

	config := &JournalConfig{
		ID:        uuid.New(),
		JournalID: created.ID,
		Timezone:  "UTC",
	}

	if _, err := j.db.NewInsert().Model(config).Exec(ctx); err != nil {
		return nil, err
	}

	created.Config = config

	return created, nil
}
