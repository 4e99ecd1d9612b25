package auth

import (
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Accounts() Accounts
	Journals() Journals
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	journals Journals
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		journals: NewJournalsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.journals == nil {
		return errors.New("repository journals should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Journals() Journals {
	return m.journals
}
