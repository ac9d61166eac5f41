// Package session holds the portal's single view of who is logged in.
//
// The store starts Unknown, hydrates from durable credentials and settles on Authenticated or
// Anonymous. A stored identity is trusted immediately and reconciled against the backend's
// profile endpoint in the background, so a restart never flashes the login page.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	RoleAdmin   = "admin"
	RoleFaculty = "faculty"
	RoleStudent = "student"

	defaultProfileTimeout = 8 * time.Second
)

// Roles lists every role the portal routes.
var Roles = []string{RoleAdmin, RoleFaculty, RoleStudent}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Status int

const (
	StatusUnknown Status = iota
	StatusHydrating
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusHydrating:
		return "hydrating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Settled reports whether the status is final enough for a guard to decide on.
func (s Status) Settled() bool {
	return s == StatusAuthenticated || s == StatusAnonymous
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Status   Status
	Identity credentials.Identity
	// Reconciling is set while an optimistically restored identity waits for the profile fetch.
	Reconciling bool
}

func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// Role is empty unless the session is authenticated.
func (s Snapshot) Role() string {
	if !s.Authenticated() {
		return ""
	}
	return s.Identity.Role
}

// Backend is the part of the API client the store depends on.
type Backend interface {
	ObtainToken(ctx context.Context, username, password, role string) (*apiclient.TokenPair, error)
	StudentLogin(ctx context.Context, enrollmentID, dateOfBirth string) (*apiclient.TokenPair, error)
	Profile(ctx context.Context, opts ...apiclient.RequestOption) (*apiclient.Profile, error)
	OnSessionEnded(fn func())
	InvalidateSession()
}

type Store struct {
	backend        Backend
	creds          credentials.Store
	profileTimeout time.Duration

	mu      sync.Mutex
	snap    Snapshot
	epoch   uint64
	changed chan struct{}
	subs    map[int]chan Snapshot
	nextSub int
	started bool
	wg      sync.WaitGroup
}

type Option func(*Store)

// WithProfileTimeout bounds the background profile fetch.
func WithProfileTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.profileTimeout = d
		}
	}
}

// New creates the store in the Unknown state and subscribes it to the client's session-ended
// notifications. Call Start to hydrate it.
func New(backend Backend, creds credentials.Store, opts ...Option) *Store {
	s := &Store{
		backend:        backend,
		creds:          creds,
		profileTimeout: defaultProfileTimeout,
		changed:        make(chan struct{}),
		subs:           map[int]chan Snapshot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	backend.OnSessionEnded(s.expire)
	return s
}

// Start hydrates the store from durable credentials. It returns with the store either settled
// or Hydrating; the profile reconciliation continues in the background under ctx.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	tok, err := credentials.LoadToken(ctx, s.creds)
	if err != nil {
		s.setLocked(Snapshot{Status: StatusAnonymous})
		return fmt.Errorf("[session Start] %w", err)
	}
	if tok == nil {
		s.setLocked(Snapshot{Status: StatusAnonymous})
		return nil
	}

	id, ok, err := credentials.LoadIdentity(ctx, s.creds)
	if err != nil {
		log.Warn().Err(err).Msg("stored identity unreadable, waiting for profile")
	}
	if ok {
		s.setLocked(Snapshot{Status: StatusAuthenticated, Identity: id, Reconciling: true})
	} else {
		s.setLocked(Snapshot{Status: StatusHydrating})
	}
	log.Info().Time("access_expires_at", tok.Expiry).Bool("identity_stored", ok).Msg("restoring stored session")

	epoch := s.epoch
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reconcile(ctx, epoch)
	}()
	return nil
}

// reconcile confirms the restored session with the backend. Results are discarded when a
// login, logout or expiry happened while the fetch was in flight.
func (s *Store) reconcile(ctx context.Context, epoch uint64) {
	ctx, cancel := context.WithTimeout(ctx, s.profileTimeout)
	defer cancel()

	profile, err := s.backend.Profile(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		log.Debug().Msg("discarding stale profile result")
		return
	}

	current := s.snap
	switch {
	case err == nil:
		id := credentials.Identity{
			Role:     firstNonEmpty(profile.Role, current.Identity.Role),
			Username: firstNonEmpty(profile.Username, current.Identity.Username),
		}
		if id.Role == "" || id.Username == "" {
			log.Warn().Msg("profile response carried no identity")
			s.keepOrAnonymousLocked(current)
			return
		}
		if err := credentials.SaveIdentity(ctx, s.creds, id); err != nil {
			log.Err(err).Msg("failed to persist confirmed identity")
		}
		s.setLocked(Snapshot{Status: StatusAuthenticated, Identity: id})

	case perrors.Is(err, perrors.ErrUnauthenticated):
		log.Info().Msg("stored session rejected by backend")
		s.backend.InvalidateSession()
		if err := credentials.ClearSession(context.WithoutCancel(ctx), s.creds); err != nil {
			log.Err(err).Msg("failed to clear rejected session")
		}
		s.setLocked(Snapshot{Status: StatusAnonymous})

	default:
		log.Warn().Err(err).Str("kind", perrors.Classify(err).String()).Msg("profile fetch failed, keeping stored session")
		s.keepOrAnonymousLocked(current)
	}
}

// keepOrAnonymousLocked keeps an optimistic identity after a failed fetch. Without one the
// session cannot be routed and becomes Anonymous; the tokens stay for the next attempt.
func (s *Store) keepOrAnonymousLocked(current Snapshot) {
	if current.Status == StatusAuthenticated {
		current.Reconciling = false
		s.setLocked(current)
		return
	}
	s.setLocked(Snapshot{Status: StatusAnonymous})
}

// LoginRequest is a staff login with the role the user claims.
type LoginRequest struct {
	Username string
	Password string
	Role     string
}

// Login authenticates a staff member. The backend's role must match the claimed role, otherwise
// nothing is persisted and ErrRoleMismatch is returned.
func (s *Store) Login(ctx context.Context, req LoginRequest) (credentials.Identity, error) {
	pair, err := s.backend.ObtainToken(ctx, req.Username, req.Password, req.Role)
	if err != nil {
		return credentials.Identity{}, fmt.Errorf("[session Login] %w", err)
	}
	id, err := identityFromPair(pair, req.Role, req.Username)
	if err != nil {
		return credentials.Identity{}, fmt.Errorf("[session Login] %w", err)
	}
	if err := s.establish(ctx, pair, id); err != nil {
		return credentials.Identity{}, fmt.Errorf("[session Login] %w", err)
	}
	return id, nil
}

// StudentLogin authenticates a student by enrollment id and date of birth (YYYY-MM-DD).
func (s *Store) StudentLogin(ctx context.Context, enrollmentID, dateOfBirth string) (credentials.Identity, error) {
	pair, err := s.backend.StudentLogin(ctx, enrollmentID, dateOfBirth)
	if err != nil {
		return credentials.Identity{}, fmt.Errorf("[session StudentLogin] %w", err)
	}
	if pair.UserRole() == "" {
		pair.Role = RoleStudent
	}
	id, err := identityFromPair(pair, RoleStudent, enrollmentID)
	if err != nil {
		return credentials.Identity{}, fmt.Errorf("[session StudentLogin] %w", err)
	}
	if err := s.establish(ctx, pair, id); err != nil {
		return credentials.Identity{}, fmt.Errorf("[session StudentLogin] %w", err)
	}
	return id, nil
}

func identityFromPair(pair *apiclient.TokenPair, claimedRole, fallbackUsername string) (credentials.Identity, error) {
	role := pair.UserRole()
	if role == "" {
		return credentials.Identity{}, fmt.Errorf("%w: no role information", perrors.ErrMalformedResponse)
	}
	if role != claimedRole {
		return credentials.Identity{}, fmt.Errorf("%w: you don't have %s privileges, please select the correct role", perrors.ErrRoleMismatch, claimedRole)
	}
	return credentials.Identity{Role: role, Username: firstNonEmpty(pair.Username(), fallbackUsername)}, nil
}

func (s *Store) establish(ctx context.Context, pair *apiclient.TokenPair, id credentials.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backend.InvalidateSession()
	if err := credentials.SaveToken(ctx, s.creds, credentials.NewToken(pair.Access, pair.Refresh)); err != nil {
		return err
	}
	if err := credentials.SaveIdentity(ctx, s.creds, id); err != nil {
		return err
	}
	s.epoch++
	s.started = true
	s.setLocked(Snapshot{Status: StatusAuthenticated, Identity: id})
	log.Info().Str("role", id.Role).Str("username", id.Username).Msg("logged in")
	return nil
}

// Logout clears the durable session and reports Anonymous before returning, whether or not a
// profile fetch is still in flight. A storage failure is returned but does not keep the user
// logged in.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.started = true
	s.backend.InvalidateSession()
	err := credentials.ClearSession(ctx, s.creds)
	s.setLocked(Snapshot{Status: StatusAnonymous})
	if err != nil {
		return fmt.Errorf("[session Logout] %w", err)
	}
	return nil
}

// expire runs after the API client gave up on refreshing. The client already cleared the
// tokens; the identity goes with them.
func (s *Store) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.backend.InvalidateSession()
	if err := s.creds.Delete(context.Background(), credentials.KeyRole, credentials.KeyUsername); err != nil {
		log.Err(err).Msg("failed to clear identity of expired session")
	}
	if s.snap.Status != StatusAnonymous {
		log.Info().Msg("session expired")
	}
	s.setLocked(Snapshot{Status: StatusAnonymous})
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Wait blocks until the session is Authenticated or Anonymous, or ctx is done. It returns the
// latest snapshot in both cases.
func (s *Store) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap, changed := s.snap, s.changed
		s.mu.Unlock()
		if snap.Status.Settled() {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// Subscribe delivers every transition. A slow subscriber only sees the latest snapshot.
// The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Drain waits for a running reconciliation to finish.
func (s *Store) Drain() {
	s.wg.Wait()
}

func (s *Store) setLocked(next Snapshot) {
	prev := s.snap
	s.snap = next
	close(s.changed)
	s.changed = make(chan struct{})

	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}

	if prev.Status != next.Status {
		log.Debug().Stringer("from", prev.Status).Stringer("to", next.Status).Msg("session transition")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
