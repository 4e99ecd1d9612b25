package auth_test

import (
	"context"
	"sync"
	"time"

	auth "github.com/driftnote/auth"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// capturedMail is one message handed to the capture mailer.
type capturedMail struct {
	To      string
	Subject string
	Body    string
}

// captureMailer implements auth.Mailer and records every send.
type captureMailer struct {
	mu   sync.Mutex
	Sent []capturedMail
	Err  error
}

func (m *captureMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, capturedMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *captureMailer) Last() capturedMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return capturedMail{}
	}
	return m.Sent[len(m.Sent)-1]
}

func (m *captureMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// captureSink implements auth.ActivitySink and records every event.
type captureSink struct {
	mu     sync.Mutex
	Events []auth.ActivityEvent
	Err    error
}

func (s *captureSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Events = append(s.Events, event)
	return nil
}

func (s *captureSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]auth.ActivityEventType, 0, len(s.Events))
	for _, e := range s.Events {
		types = append(types, e.EventType)
	}
	return types
}

// staticRand is a deterministic entropy source for token issuing.
type staticRand struct {
	next byte
}

func (r *staticRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.next
		r.next++
	}
	return len(p), nil
}

// MockBetaStore implements auth.BetaStore
type MockBetaStore struct {
	mock.Mock
}

func (m *MockBetaStore) SaveTokenSlot(ctx context.Context, account *auth.Account, kind auth.TokenKind) (*auth.Account, error) {
	args := m.Called(ctx, account, kind)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockBetaStore) SaveBetaAccess(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockBetaStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockBetaStore) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockBetaStore) ConsumeDecisionToken(ctx context.Context, tokenHash string, access auth.BetaAccess, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, access, now)
	return accountArg(args, 0), args.Error(1)
}

// MockAccounts implements auth.Accounts. The embedded repository interface
// covers the generic CRUD surface; calling an unstubbed promoted method
// panics, which is what we want in tests.
type MockAccounts struct {
	mock.Mock
	repository.Repository[*auth.Account]
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	args := m.Called(ctx, email)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) GetByAccountID(ctx context.Context, id string) (*auth.Account, error) {
	args := m.Called(ctx, id)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) GetByTokenHash(ctx context.Context, kind auth.TokenKind, hash string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, kind, hash, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) SaveTokenSlot(ctx context.Context, account *auth.Account, kind auth.TokenKind) (*auth.Account, error) {
	args := m.Called(ctx, account, kind)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) SaveBetaAccess(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, passwordHash, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) ConsumeDecisionToken(ctx context.Context, tokenHash string, access auth.BetaAccess, now time.Time) (*auth.Account, error) {
	args := m.Called(ctx, tokenHash, access, now)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) TrackAttemptedLogin(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackSucccessfulLogin(ctx context.Context, account *auth.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) Register(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *auth.Account) (*auth.Account, error) {
	args := m.Called(ctx, tx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, record *auth.Account, criteria ...repository.InsertCriteria) (*auth.Account, error) {
	args := m.Called(ctx, record, criteria)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *auth.Account, criteria ...repository.InsertCriteria) (*auth.Account, error) {
	args := m.Called(ctx, tx, record, criteria)
	return accountArg(args, 0), args.Error(1)
}

// MockJournals implements auth.Journals
type MockJournals struct {
	mock.Mock
	repository.Repository[*auth.Journal]
}

func (m *MockJournals) ProvisionDefault(ctx context.Context, owner *auth.Account) (*auth.Journal, error) {
	args := m.Called(ctx, owner)
	journal, _ := args.Get(0).(*auth.Journal)
	return journal, args.Error(1)
}

func (m *MockJournals) GetByOwner(ctx context.Context, ownerID uuid.UUID) ([]*auth.Journal, error) {
	args := m.Called(ctx, ownerID)
	journals, _ := args.Get(0).([]*auth.Journal)
	return journals, args.Error(1)
}

// MockRepositoryManager exposes mock repositories through the manager
// interface the command handlers expect.
type MockRepositoryManager struct {
	AccountsRepo auth.Accounts
	JournalsRepo auth.Journals
}

func (m *MockRepositoryManager) Validate() error         { return nil }
func (m *MockRepositoryManager) MustValidate()           {}
func (m *MockRepositoryManager) Accounts() auth.Accounts { return m.AccountsRepo }
func (m *MockRepositoryManager) Journals() auth.Journals { return m.JournalsRepo }

// stubGate implements auth.BetaStateMachine with overridable hooks.
type stubGate struct {
	gateErr          error
	requestAccessErr error
	enqueueErr       error
	blockErr         error

	requestAccessCalls int
	enqueueCalls       int
	blockCalls         int

	approveAccount *auth.Account
	approveErr     error
	denyAccount    *auth.Account
	denyErr        error
	lastTokenHash  string
}

func (s *stubGate) CurrentState(account *auth.Account) auth.ReviewState {
	if account == nil {
		return ""
	}
	return account.ReviewState(time.Now())
}

func (s *stubGate) CheckGate(account *auth.Account) error { return s.gateErr }

func (s *stubGate) RequestAccess(ctx context.Context, account *auth.Account) error {
	s.requestAccessCalls++
	return s.requestAccessErr
}

func (s *stubGate) EnqueueReview(ctx context.Context, account *auth.Account) error {
	s.enqueueCalls++
	return s.enqueueErr
}

func (s *stubGate) Approve(ctx context.Context, actor auth.ActorRef, tokenHash string) (*auth.Account, error) {
	s.lastTokenHash = tokenHash
	return s.approveAccount, s.approveErr
}

func (s *stubGate) Deny(ctx context.Context, actor auth.ActorRef, tokenHash string) (*auth.Account, error) {
	s.lastTokenHash = tokenHash
	return s.denyAccount, s.denyErr
}

func (s *stubGate) BlockReapply(ctx context.Context, account *auth.Account) error {
	s.blockCalls++
	return s.blockErr
}

// MockSessionStore implements auth.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Put(ctx context.Context, session *auth.SessionObject) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*auth.SessionObject, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*auth.SessionObject)
	return session, args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func accountArg(args mock.Arguments, index int) *auth.Account {
	account, _ := args.Get(index).(*auth.Account)
	return account
}

func testNotifier(mailer auth.Mailer) *auth.LifecycleNotifier {
	notifier, err := auth.NewLifecycleNotifier(mailer, "https://app.test", "reviewer@app.test")
	if err != nil {
		panic(err)
	}
	return notifier
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
