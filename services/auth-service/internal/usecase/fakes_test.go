package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/model"
	"github.com/vasapolrittideah/lang-app-api/services/auth-service/internal/repository"
)

var errStoreDown = errors.New("store down")

// fakeIdentityRepo is an in-memory canonical store with unique username and email.
type fakeIdentityRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*model.Identity
	creates int

	getErr    error
	createErr error
	updateErr error
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{byID: map[int64]*model.Identity{}}
}

func (r *fakeIdentityRepo) CreateIdentity(_ context.Context, identity *model.Identity) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.byID {
		if existing.Username == identity.Username || existing.Email == identity.Email {
			return nil, repository.ErrDuplicateIdentity
		}
	}

	r.nextID++
	r.creates++
	stored := *identity
	stored.ID = r.nextID
	stored.PasswordVersion = 1
	r.byID[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (r *fakeIdentityRepo) GetIdentity(_ context.Context, id int64) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	identity, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *identity
	return &out, nil
}

func (r *fakeIdentityRepo) GetIdentityByUsername(_ context.Context, username string) (*model.Identity, error) {
	return r.find(func(i *model.Identity) bool { return i.Username == username })
}

func (r *fakeIdentityRepo) GetIdentityByUsernameOrEmail(
	_ context.Context,
	username, email string,
) (*model.Identity, error) {
	return r.find(func(i *model.Identity) bool { return i.Username == username || i.Email == email })
}

func (r *fakeIdentityRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return 0, r.updateErr
	}
	identity, ok := r.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.PasswordVersion++
	return identity.PasswordVersion, nil
}

func (r *fakeIdentityRepo) find(match func(*model.Identity) bool) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return nil, r.getErr
	}
	for id := int64(1); id <= r.nextID; id++ {
		if identity, ok := r.byID[id]; ok && match(identity) {
			out := *identity
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeIdentityRepo) count(username string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, identity := range r.byID {
		if identity.Username == username {
			n++
		}
	}
	return n
}

// interleavingIdentityRepo runs a callback once, right after the first username lookup
// or the first password update returns, so another flow can run in between.
type interleavingIdentityRepo struct {
	*fakeIdentityRepo

	afterGet    func()
	afterUpdate func()
	getFired    atomic.Bool
	updateFired atomic.Bool
}

func (r *interleavingIdentityRepo) GetIdentityByUsername(ctx context.Context, username string) (*model.Identity, error) {
	identity, err := r.fakeIdentityRepo.GetIdentityByUsername(ctx, username)
	if r.afterGet != nil && r.getFired.CompareAndSwap(false, true) {
		r.afterGet()
	}
	return identity, err
}

func (r *interleavingIdentityRepo) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) (int64, error) {
	version, err := r.fakeIdentityRepo.UpdatePasswordHash(ctx, id, passwordHash)
	if r.afterUpdate != nil && r.updateFired.CompareAndSwap(false, true) {
		r.afterUpdate()
	}
	return version, err
}

// fakeMirrorRepo is an in-memory mirror that counts every call it receives.
type fakeMirrorRepo struct {
	mu      sync.Mutex
	records map[string]*model.MirrorCredential

	calls          int
	inserts        int
	backLinkWrites int
	hashWrites     int

	err     error
	findErr error
	delay   time.Duration
}

func newFakeMirrorRepo() *fakeMirrorRepo {
	return &fakeMirrorRepo{records: map[string]*model.MirrorCredential{}}
}

func (r *fakeMirrorRepo) seed(username, email, passwordHash string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[username] = &model.MirrorCredential{
		ID:           bson.NewObjectID(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

func (r *fakeMirrorRepo) get(username string) *model.MirrorCredential {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[username]
	if !ok {
		return nil
	}
	out := *record
	return &out
}

func (r *fakeMirrorRepo) enter(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	delay, err := r.delay, r.err
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (r *fakeMirrorRepo) InsertCredential(
	ctx context.Context,
	credential *model.MirrorCredential,
) (*model.MirrorCredential, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[credential.Username]; ok {
		return nil, repository.ErrDuplicateIdentity
	}

	r.inserts++
	stored := *credential
	stored.ID = bson.NewObjectID()
	stored.CreatedAt = time.Now().UTC()
	r.records[stored.Username] = &stored

	out := stored
	return &out, nil
}

func (r *fakeMirrorRepo) GetCredentialByUsername(ctx context.Context, username string) (*model.MirrorCredential, error) {
	if err := r.enter(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	findErr := r.findErr
	r.mu.Unlock()
	if findErr != nil {
		return nil, findErr
	}

	if record := r.get(username); record != nil {
		return record, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeMirrorRepo) UpdateBackLink(ctx context.Context, username string, canonicalID int64) error {
	if err := r.enter(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.backLinkWrites++
	if record, ok := r.records[username]; ok {
		id := canonicalID
		record.BackLink = &id
	}
	return nil
}

func (r *fakeMirrorRepo) UpsertPasswordHash(ctx context.Context, params repository.UpsertPasswordHashParams) error {
	if err := r.enter(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[params.Username]
	if ok && record.PasswordVersion > params.PasswordVersion {
		return nil
	}

	r.hashWrites++
	if !ok {
		id := params.CanonicalID
		record = &model.MirrorCredential{
			ID:        bson.NewObjectID(),
			Username:  params.Username,
			Email:     params.Email,
			CreatedAt: time.Now().UTC(),
			BackLink:  &id,
		}
		r.records[params.Username] = record
	}
	record.PasswordHash = params.PasswordHash
	record.PasswordVersion = params.PasswordVersion
	return nil
}

func (r *fakeMirrorRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeMirrorRepo) writes() (backLinks, hashes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backLinkWrites, r.hashWrites
}

func (r *fakeMirrorRepo) setErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *fakeMirrorRepo) setFindErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

// fakeHasher stores passwords behind a readable prefix so tests can seed mirror hashes.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, encodedHash string) (bool, error) {
	if !strings.HasPrefix(encodedHash, "hashed:") {
		return false, errors.New("unknown hash format")
	}
	return encodedHash == "hashed:"+password, nil
}

// fakeSessions hands out sequential tokens and resolves them without a session store.
type fakeSessions struct {
	mu       sync.Mutex
	byToken  map[string]*model.Identity
	next     int
	failWith error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byToken: map[string]*model.Identity{}}
}

func (s *fakeSessions) Establish(_ context.Context, identity *model.Identity) (*SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return nil, s.failWith
	}
	s.next++
	token := "token-" + strconv.Itoa(s.next)
	out := *identity
	s.byToken[token] = &out
	return &SessionToken{Token: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *fakeSessions) Current(_ context.Context, token string) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byToken[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}

func (s *fakeSessions) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[token]; !ok {
		return ErrUnauthenticated
	}
	delete(s.byToken, token)
	return nil
}

type recordingAuditSink struct {
	mu     sync.Mutex
	events []model.LoginEvent
}

func (s *recordingAuditSink) Emit(_ context.Context, event model.LoginEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingAuditSink) snapshot() []model.LoginEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LoginEvent(nil), s.events...)
}

type testHarness struct {
	usecase    AuthUsecase
	identities *fakeIdentityRepo
	mirrorRepo *fakeMirrorRepo
	sessions   *fakeSessions
	audit      *recordingAuditSink
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	mirrorEnabled bool
	mirrorTimeout time.Duration
}

func withMirror() harnessOption {
	return func(c *harnessConfig) { c.mirrorEnabled = true }
}

func withMirrorTimeout(d time.Duration) harnessOption {
	return func(c *harnessConfig) { c.mirrorTimeout = d }
}

func newTestHarness(t *testing.T, opts ...harnessOption) *testHarness {
	t.Helper()

	hc := harnessConfig{mirrorTimeout: time.Second}
	for _, opt := range opts {
		opt(&hc)
	}

	h := &testHarness{
		identities: newFakeIdentityRepo(),
		mirrorRepo: newFakeMirrorRepo(),
		sessions:   newFakeSessions(),
		audit:      &recordingAuditSink{},
	}

	var mirror *CredentialMirror
	if hc.mirrorEnabled {
		mirror = NewCredentialMirror(h.mirrorRepo, hc.mirrorTimeout)
	}

	cfg := &config.AuthServiceConfig{
		Password: config.PasswordConfig{MinLength: 6},
		Token:    config.TokenConfig{SessionExpiresIn: time.Hour},
	}
	logger := zerolog.Nop()

	h.usecase = NewAuthUsecase(h.identities, mirror, h.sessions, h.audit, fakeHasher{}, cfg, &logger)
	require.NotNil(t, h.usecase)

	return h
}

func newInterleavedUsecase(identities *interleavingIdentityRepo, mirrorRepo *fakeMirrorRepo) AuthUsecase {
	logger := zerolog.Nop()
	cfg := &config.AuthServiceConfig{Password: config.PasswordConfig{MinLength: 6}}

	return NewAuthUsecase(
		identities,
		NewCredentialMirror(mirrorRepo, time.Second),
		newFakeSessions(),
		nil,
		fakeHasher{},
		cfg,
		&logger,
	)
}
