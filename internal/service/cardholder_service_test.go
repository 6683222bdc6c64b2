package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/tarjetajoven/api/internal/domain"
	"github.com/tarjetajoven/api/internal/repo/postgres"
	"github.com/tarjetajoven/api/pkg/config"
	"github.com/tarjetajoven/api/pkg/events"
)

// ---------- Fakes ----------

// fakeStore models the row-locked cardholder store: WithLock serializes
// callers, commits fn's mutations on nil and restores the previous state
// on error.
type fakeStore struct {
	mu        sync.Mutex
	ch        *domain.Cardholder // nil = no such CURP
	logins    map[string]bool
	nextID    int64
	created   []domain.NewAccount
	audits    []string
	lockErr   error
	lockCalls int
}

func newFakeStore(ch *domain.Cardholder) *fakeStore {
	return &fakeStore{
		ch:     ch,
		logins: make(map[string]bool),
		nextID: 100,
	}
}

func (f *fakeStore) WithLock(ctx context.Context, curp string, fn func(tx postgres.CardholderTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lockCalls++
	if f.lockErr != nil {
		return f.lockErr
	}

	var row *domain.Cardholder
	if f.ch != nil && f.ch.CURP == curp {
		row = f.ch
	}

	var snapshot *domain.Cardholder
	if row != nil {
		c := *row
		snapshot = &c
	}
	createdLen := len(f.created)
	auditsLen := len(f.audits)

	err := fn(&fakeTx{store: f, ch: row})
	if err != nil {
		// rollback
		if row != nil && snapshot != nil {
			*row = *snapshot
		}
		f.created = f.created[:createdLen]
		f.audits = f.audits[:auditsLen]
		return err
	}
	return nil
}

type fakeTx struct {
	store *fakeStore
	ch    *domain.Cardholder
}

func (t *fakeTx) Cardholder() *domain.Cardholder { return t.ch }

func (t *fakeTx) RecordAttempt(ctx context.Context, attempts int, at time.Time, blockedUntil *time.Time) error {
	t.ch.Attempts = attempts
	t.ch.LastAttemptAt = &at
	t.ch.BlockedUntil = blockedUntil
	return nil
}

func (t *fakeTx) OpenWindow(ctx context.Context, attempts int, at time.Time, until time.Time) error {
	t.ch.Attempts = attempts
	t.ch.LastAttemptAt = &at
	t.ch.BlockedUntil = nil
	t.ch.WindowUntil = &until
	return nil
}

func (t *fakeTx) LoginTaken(ctx context.Context, username, curp string) (bool, error) {
	return t.store.logins[username] || t.store.logins[curp], nil
}

func (t *fakeTx) CreateAccount(ctx context.Context, a *domain.NewAccount) (int64, error) {
	t.store.nextID++
	id := t.store.nextID
	t.store.created = append(t.store.created, *a)
	t.store.logins[a.Email] = true
	t.store.logins[a.CURP] = true
	t.ch.AccountUserID = &id
	t.ch.WindowUntil = nil
	t.ch.Attempts = 0
	return id, nil
}

func (t *fakeTx) AppendAudit(ctx context.Context, action, ip string) error {
	t.store.audits = append(t.store.audits, action)
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (f *fakeAudit) Append(ctx context.Context, cardholderID int64, action, ip string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, action)
	return nil
}

func (f *fakeAudit) ListByCardholder(ctx context.Context, cardholderID int64, limit int) ([]domain.AuditEntry, error) {
	return nil, nil
}

// ---------- Helpers ----------

const testCURP = "ABCD010101HDFRRN07"

var testLimits = config.LookupConfig{
	RateLimit:     5,
	RateWindow:    15 * time.Minute,
	BlockDuration: 15 * time.Minute,
	AccountWindow: 15 * time.Minute,
}

func activeCardholder() *domain.Cardholder {
	munID := int64(1)
	return &domain.Cardholder{
		ID:          7,
		CURP:        testCURP,
		Nombres:     "Ana",
		Apellidos:   "Hernandez Ruiz",
		MunicipioID: &munID,
		Municipio:   "Tijuana",
		CardNumber:  "TJ-000123",
		Status:      domain.StatusActive,
	}
}

func newTestService(store *fakeStore, audit *fakeAudit, now time.Time) (*cardholderService, *time.Time) {
	clock := now
	svc := NewCardholderService(store, audit, events.NoopPublisher{}, testLimits).(*cardholderService)
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

// ---------- Lookup ----------

func TestLookupRejectsMalformedCURPWithoutStorageAccess(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())

	for _, curp := range []string{"", "   ", "not-a-curp", "ABCD010101XDFRRN07"} {
		_, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: curp}, "1.2.3.4")
		if !domain.IsValidation(err) {
			t.Errorf("curp %q: expected validation error, got %v", curp, err)
		}
	}
	if store.lockCalls != 0 {
		t.Errorf("storage touched %d times for malformed input", store.lockCalls)
	}
}

func TestLookupUnknownAndInactiveAreIndistinguishable(t *testing.T) {
	inactive := activeCardholder()
	inactive.Status = domain.StatusInactive

	blocked := activeCardholder()
	blocked.Status = domain.StatusBlocked

	for name, store := range map[string]*fakeStore{
		"unknown":  newFakeStore(nil),
		"inactive": newFakeStore(inactive),
		"blocked":  newFakeStore(blocked),
	} {
		svc, _ := newTestService(store, &fakeAudit{}, time.Now())
		_, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
		if !errors.Is(err, domain.ErrCardNotAvailable) {
			t.Errorf("%s: got %v, want ErrCardNotAvailable", name, err)
		}
	}
}

func TestLookupConflictWhenAccountLinked(t *testing.T) {
	ch := activeCardholder()
	userID := int64(55)
	ch.AccountUserID = &userID

	svc, _ := newTestService(newFakeStore(ch), &fakeAudit{}, time.Now())
	_, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("got %v, want ErrAccountExists", err)
	}
}

func TestLookupSuccessOpensWindowAndAudits(t *testing.T) {
	store := newFakeStore(activeCardholder())
	audit := &fakeAudit{}
	now := time.Now()
	svc, _ := newTestService(store, audit, now)

	result, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: "  abcd010101hdfrrn07 "}, "1.2.3.4")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if result.CURP != testCURP || result.Nombres != "Ana" || result.Municipio != "Tijuana" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.HasAccount {
		t.Error("hasAccount should be false")
	}

	if store.ch.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", store.ch.Attempts)
	}
	if store.ch.WindowUntil == nil || !store.ch.WindowUntil.Equal(now.Add(15*time.Minute)) {
		t.Errorf("window until = %v, want now+15m", store.ch.WindowUntil)
	}
	if len(audit.entries) != 1 || audit.entries[0] != domain.AuditActionLookup {
		t.Errorf("audit entries = %v", audit.entries)
	}
}

func TestLookupSixthAttemptWithinWindowIsRateLimitedAndLocks(t *testing.T) {
	store := newFakeStore(activeCardholder())
	now := time.Now()
	svc, clock := newTestService(store, &fakeAudit{}, now)

	for i := 0; i < 5; i++ {
		*clock = now.Add(time.Duration(i) * time.Minute)
		if _, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4"); err != nil {
			t.Fatalf("lookup %d: %v", i+1, err)
		}
	}

	*clock = now.Add(5 * time.Minute)
	_, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("6th lookup: got %v, want ErrRateLimited", err)
	}
	if store.ch.Attempts != 6 {
		t.Errorf("attempts = %d, want 6 persisted", store.ch.Attempts)
	}
	if store.ch.BlockedUntil == nil || !store.ch.BlockedUntil.Equal(clock.Add(15*time.Minute)) {
		t.Errorf("blocked until = %v, want now+15m", store.ch.BlockedUntil)
	}

	// A lookup before the lock expires is rejected without touching the
	// counter, even though the window-based count would allow it.
	*clock = now.Add(10 * time.Minute)
	_, err = svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("locked lookup: got %v, want ErrRateLimited", err)
	}
	if store.ch.Attempts != 6 {
		t.Errorf("attempts mutated during lock: %d", store.ch.Attempts)
	}
}

func TestLookupCounterResetsAfterRateWindow(t *testing.T) {
	store := newFakeStore(activeCardholder())
	now := time.Now()
	svc, clock := newTestService(store, &fakeAudit{}, now)

	for i := 0; i < 5; i++ {
		if _, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4"); err != nil {
			t.Fatalf("lookup %d: %v", i+1, err)
		}
	}
	if store.ch.Attempts != 5 {
		t.Fatalf("attempts = %d, want 5", store.ch.Attempts)
	}

	// Advance past the rate window: next lookup counts as 1, not 6.
	*clock = now.Add(16 * time.Minute)
	if _, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4"); err != nil {
		t.Fatalf("lookup after window: %v", err)
	}
	if store.ch.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 after reset", store.ch.Attempts)
	}
}

func TestLookupSucceedsWhenAuditFails(t *testing.T) {
	store := newFakeStore(activeCardholder())
	audit := &fakeAudit{err: errors.New("sink unavailable")}
	svc, _ := newTestService(store, audit, time.Now())

	if _, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4"); err != nil {
		t.Fatalf("Lookup should not fail on audit error: %v", err)
	}
}

// ---------- CreateAccount ----------

func validCreateReq() domain.CreateAccountRequest {
	return domain.CreateAccountRequest{
		Username:        "ana.hernandez",
		Password:        "Secreta123",
		ConfirmPassword: "Secreta123",
	}
}

func lookedUp(t *testing.T, svc *cardholderService) {
	t.Helper()
	if _, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4"); err != nil {
		t.Fatalf("seed lookup: %v", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())

	req := validCreateReq()
	if err := svc.CreateAccount(context.Background(), "bad-curp", &req, "1.2.3.4"); !domain.IsValidation(err) {
		t.Errorf("bad curp: got %v", err)
	}

	req = validCreateReq()
	req.ConfirmPassword = "Otra12345"
	if err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4"); !domain.IsValidation(err) {
		t.Errorf("mismatch: got %v", err)
	}

	if store.lockCalls != 0 {
		t.Errorf("storage touched %d times for invalid input", store.lockCalls)
	}
}

func TestCreateAccountWithoutWindowFailsLikeNotFound(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())

	req := validCreateReq()
	err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4")
	if !errors.Is(err, domain.ErrWindowExpired) {
		t.Fatalf("got %v, want ErrWindowExpired", err)
	}
	if len(store.created) != 0 {
		t.Error("no account should be created")
	}
}

func TestCreateAccountAfterWindowElapsesFails(t *testing.T) {
	store := newFakeStore(activeCardholder())
	now := time.Now()
	svc, clock := newTestService(store, &fakeAudit{}, now)
	lookedUp(t, svc)

	*clock = now.Add(16 * time.Minute)
	req := validCreateReq()
	err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4")
	if !errors.Is(err, domain.ErrWindowExpired) {
		t.Fatalf("got %v, want ErrWindowExpired", err)
	}
}

func TestCreateAccountRejectsTakenUsername(t *testing.T) {
	store := newFakeStore(activeCardholder())
	store.logins["ana.hernandez"] = true
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())
	lookedUp(t, svc)

	req := validCreateReq()
	err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4")
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestCreateAccountSuccess(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())
	lookedUp(t, svc)

	req := validCreateReq()
	if err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created %d accounts, want 1", len(store.created))
	}
	acc := store.created[0]
	if acc.Nombre != "Ana" || acc.Apellidos != "Hernandez Ruiz" || acc.CURP != testCURP {
		t.Errorf("personal data not copied from cardholder: %+v", acc)
	}
	if acc.Email != "ana.hernandez" {
		t.Errorf("email = %q", acc.Email)
	}

	if store.ch.AccountUserID == nil {
		t.Error("account not linked")
	}
	if store.ch.WindowUntil != nil {
		t.Error("window not cleared")
	}
	if store.ch.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", store.ch.Attempts)
	}
	if len(store.audits) != 1 || store.audits[0] != domain.AuditActionAccountCreated {
		t.Errorf("tx audits = %v", store.audits)
	}

	// Stored hash verifies against the original password only.
	match, err := argon2id.ComparePasswordAndHash("Secreta123", acc.PasswordHash)
	if err != nil || !match {
		t.Errorf("hash does not verify original password (match=%v err=%v)", match, err)
	}
	match, err = argon2id.ComparePasswordAndHash("Secreta124", acc.PasswordHash)
	if err != nil || match {
		t.Errorf("hash verifies wrong password (match=%v err=%v)", match, err)
	}
}

func TestConcurrentProvisioningHasExactlyOneWinner(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())
	lookedUp(t, svc)

	results := make(chan error, 2)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		username := []string{"ana.hernandez", "ana.hdz"}[i]
		go func(username string) {
			<-start
			req := domain.CreateAccountRequest{
				Username:        username,
				Password:        "Secreta123",
				ConfirmPassword: "Secreta123",
			}
			results <- svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4")
		}(username)
	}
	close(start)

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrAccountExists), errors.Is(err, domain.ErrCardNotAvailable), errors.Is(err, domain.ErrWindowExpired):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("successes=%d conflicts=%d, want exactly one winner", successes, conflicts)
	}
	if len(store.created) != 1 {
		t.Fatalf("created %d accounts, want 1", len(store.created))
	}
}

func TestEndToEndLookupProvisionRepeatLookup(t *testing.T) {
	store := newFakeStore(activeCardholder())
	svc, _ := newTestService(store, &fakeAudit{}, time.Now())

	result, err := svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if result.HasAccount {
		t.Error("first lookup: hasAccount should be false")
	}

	req := validCreateReq()
	if err := svc.CreateAccount(context.Background(), testCURP, &req, "1.2.3.4"); err != nil {
		t.Fatalf("provision: %v", err)
	}

	_, err = svc.Lookup(context.Background(), &domain.LookupRequest{CURP: testCURP}, "1.2.3.4")
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("repeat lookup: got %v, want ErrAccountExists", err)
	}
}
