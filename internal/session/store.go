package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/logging"
)

// Errors for store operations.
var (
	ErrNameRequired = errors.New("name is required")
	ErrNoSession    = errors.New("no active session")
)

// defaultProfileName replaces an emptied name on profile update.
const defaultProfileName = "User"

// Store manages the signed-in record. Create one per process and share it.
// Every mutation writes through to the repository before returning.
type Store struct {
	mu     sync.Mutex
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now for sign-in timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over repo.
func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn records p as the signed-in user and returns the stored record.
func (s *Store) SignIn(ctx context.Context, p Payload) (*Record, error) {
	return s.establish(ctx, "signin", p)
}

// SignUp behaves like SignIn. Account creation is not modeled.
func (s *Store) SignUp(ctx context.Context, p Payload) (*Record, error) {
	return s.establish(ctx, "signup", p)
}

func (s *Store) establish(ctx context.Context, op string, p Payload) (*Record, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	provider := p.Provider
	if provider == "" {
		provider = ProviderPassword
	}

	rec := &Record{
		Name:     name,
		Email:    strings.TrimSpace(p.Email),
		Avatar:   strings.TrimSpace(p.Avatar),
		Provider: provider,
		TS:       s.now().UnixMilli(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Write(rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx = logging.WithProvider(ctx, provider)
	s.logger.Info(ctx, "session established",
		zap.String("op", op),
		zap.String("email", rec.Email),
	)
	return rec, nil
}

// Load returns the stored record. ok is false when no record is stored or
// the stored value is unusable; unusable values are logged, never returned
// as errors.
func (s *Store) Load(ctx context.Context) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Record, bool) {
	rec, err := s.repo.Read()
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, ErrNotFound):
		return nil, false
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn(ctx, "ignoring corrupt session record", zap.Error(err))
		return nil, false
	default:
		s.logger.Warn(ctx, "failed to read session record", zap.Error(err))
		return nil, false
	}
}

// UpdateProfile merges p into the stored record and returns the result.
// Provider and TS are preserved unless p.Provider is set.
func (s *Store) UpdateProfile(ctx context.Context, p Profile) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	if p.Name != nil {
		rec.Name = strings.TrimSpace(*p.Name)
		if rec.Name == "" {
			rec.Name = defaultProfileName
		}
	}
	if p.Email != nil {
		rec.Email = strings.TrimSpace(*p.Email)
	}
	if p.Avatar != nil {
		rec.Avatar = strings.TrimSpace(*p.Avatar)
	}
	if p.Provider != nil && *p.Provider != "" {
		rec.Provider = *p.Provider
	}

	if err := s.repo.Write(rec); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.logger.Info(logging.WithProvider(ctx, rec.Provider), "profile updated")
	return rec, nil
}

// SignOut removes the stored record. It is idempotent.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Clear(); err != nil {
		return fmt.Errorf("signout: %w", err)
	}
	s.logger.Info(ctx, "session cleared")
	return nil
}

// SignInWith authenticates creds with provider and signs in the result.
func (s *Store) SignInWith(ctx context.Context, provider IdentityProvider, creds Credentials) (*Record, error) {
	p, err := provider.Authenticate(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", provider.Name(), err)
	}
	if p.Provider == "" {
		p.Provider = provider.Name()
	}
	return s.SignIn(ctx, p)
}
