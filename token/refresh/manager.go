package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-token-service/internal/utils"
	"github.com/jrsteele09/go-token-service/users"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRefreshTTL     = 7 * 24 * time.Hour
	DefaultTheftWindow    = 5 * time.Minute
	DefaultMaxTokenLength = 4096
)

// Operation names reported to the Observer
const (
	OperationIssue  = "issue"
	OperationRotate = "rotate"
	OperationRevoke = "revoke"
)

// IdentityStore resolves the owner of a refresh chain
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	GetSecurityStamp(ctx context.Context, u *users.User) (string, error)
	GetRoles(ctx context.Context, u *users.User) ([]string, error)
}

// AccessIssuer builds signed access credentials
type AccessIssuer interface {
	Issue(u *users.User, roles []string, now time.Time) (string, time.Time, error)
}

// Observer receives the outcome of every lifecycle operation
type Observer interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
}

// Tokens is the credential pair returned by Issue and Rotate. The refresh token
// is only ever available here.
type Tokens struct {
	AccessToken          string    `json:"access_token"`
	RefreshToken         string    `json:"refresh_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
}

// Manager handles refresh token issuance, rotation and revocation. It keeps no
// state between calls; every decision is made against the Store.
type Manager struct {
	store      Store
	identities IdentityStore
	issuer     AccessIssuer
	hasher     *Hasher

	refreshTTL     time.Duration
	theftWindow    time.Duration
	maxTokenLength int
	now            func() time.Time
	logger         zerolog.Logger
	observer       Observer
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

func WithRefreshTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTTL = ttl
	}
}

func WithTheftWindow(window time.Duration) ManagerOption {
	return func(m *Manager) {
		m.theftWindow = window
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(observer Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = observer
	}
}

// WithMaxTokenLength bounds the raw refresh tokens accepted before any store access
func WithMaxTokenLength(n int) ManagerOption {
	return func(m *Manager) {
		m.maxTokenLength = n
	}
}

// NewManager creates a new refresh token lifecycle manager
func NewManager(store Store, identities IdentityStore, issuer AccessIssuer, hasher *Hasher, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:          store,
		identities:     identities,
		issuer:         issuer,
		hasher:         hasher,
		refreshTTL:     DefaultRefreshTTL,
		theftWindow:    DefaultTheftWindow,
		maxTokenLength: DefaultMaxTokenLength,
		now:            time.Now,
		logger:         log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue starts a new refresh chain for subjectID. When roles is nil the
// identity's current roles are used.
func (m *Manager) Issue(ctx context.Context, subjectID string, roles []string, clientIP string) (tokens *Tokens, err error) {
	start := time.Now()
	defer func() { m.observe(OperationIssue, start, err) }()

	now := m.now()
	logger := m.logger.With().Str("subject_id", subjectID).Str("client_ip", clientIP).Logger()

	u, err := m.identities.FindByID(ctx, subjectID)
	if errors.Is(err, users.ErrNotFound) {
		logger.Debug().Msg("issue rejected: unknown subject")
		return nil, ErrUnknownSubject
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}
	if u.Blocked {
		logger.Warn().Msg("issue rejected: subject is blocked")
		return nil, ErrUnknownSubject
	}

	if roles == nil {
		if roles, err = m.identities.GetRoles(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to resolve roles: %w", err)
		}
	}

	accessToken, accessExpiry, err := m.issuer.Issue(u, roles, now)
	if err != nil {
		return nil, err
	}

	stamp, err := m.identities.GetSecurityStamp(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to read security stamp: %w", err)
	}

	raw, digest, err := m.hasher.NewSecret()
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:                    ulid.Make().String(),
		TokenDigest:           digest,
		SubjectID:             u.ID,
		IssuedAt:              now,
		ExpiresAt:             now.Add(m.refreshTTL),
		CreatedByIP:           clientIP,
		SecurityStampSnapshot: &stamp,
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	if err := tx.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store refresh record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refresh record: %w", err)
	}

	logger.Debug().Str("digest_prefix", DigestPrefix(digest)).Msg("refresh token issued")
	return &Tokens{
		AccessToken:          accessToken,
		RefreshToken:         raw,
		AccessTokenExpiresAt: accessExpiry,
	}, nil
}

// Rotate exchanges a raw refresh token for a new credential pair. The old
// record is retired and linked to its successor in one transaction.
func (m *Manager) Rotate(ctx context.Context, rawRefresh, clientIP string) (tokens *Tokens, err error) {
	start := time.Now()
	defer func() { m.observe(OperationRotate, start, err) }()

	if !m.acceptable(rawRefresh) {
		return nil, ErrInvalidToken
	}

	now := m.now()
	digest := m.hasher.Digest(rawRefresh)
	logger := m.logger.With().Str("digest_prefix", DigestPrefix(digest)).Str("client_ip", clientIP).Logger()

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	current, err := tx.GetByDigest(ctx, digest)
	if errors.Is(err, ErrRecordNotFound) {
		logger.Debug().Msg("rotate rejected: unknown digest")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh record: %w", err)
	}
	logger = logger.With().Str("subject_id", current.SubjectID).Logger()

	if err := checkRotatable(current, now); err != nil {
		logger.Debug().Err(err).Msg("rotate rejected")
		return nil, err
	}

	if current.LastUsedAt != nil && now.Sub(*current.LastUsedAt) < m.theftWindow &&
		utils.Value(current.LastUsedByIP) != clientIP {
		logger.Warn().
			Str("last_used_by_ip", utils.Value(current.LastUsedByIP)).
			Time("last_used_at", *current.LastUsedAt).
			Msg("refresh token reused from a different origin inside the theft window")
		return nil, ErrSuspiciousReuse
	}

	u, err := m.identities.FindByID(ctx, current.SubjectID)
	if errors.Is(err, users.ErrNotFound) {
		logger.Warn().Msg("rotate rejected: owning identity no longer exists")
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subject: %w", err)
	}
	if u.Blocked {
		logger.Warn().Msg("rotate rejected: owning identity is blocked")
		return nil, ErrInvalidToken
	}

	stamp, err := m.identities.GetSecurityStamp(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to read security stamp: %w", err)
	}
	if stamp != utils.Value(current.SecurityStampSnapshot) {
		logger.Warn().Msg("rotate rejected: security stamp changed since issuance")
		return nil, ErrStaleCredentials
	}

	raw, nextDigest, err := m.hasher.NewSecret()
	if err != nil {
		return nil, err
	}

	expectedVersion := current.Version
	current.LastUsedAt = &now
	current.LastUsedByIP = &clientIP
	current.RevokedAt = &now
	current.RevokedByIP = &clientIP
	current.RevocationReason = utils.Ptr(ReasonRotated)
	current.ReplacedByDigest = &nextDigest
	if err := tx.Update(ctx, current, expectedVersion); err != nil {
		return nil, m.concurrencyError(logger, err, "failed to retire refresh record")
	}

	// The successor inherits this use, so a replay of it from elsewhere
	// inside the theft window is caught.
	next := &Record{
		ID:                    ulid.Make().String(),
		TokenDigest:           nextDigest,
		SubjectID:             current.SubjectID,
		IssuedAt:              now,
		ExpiresAt:             now.Add(m.refreshTTL),
		CreatedByIP:           clientIP,
		LastUsedAt:            &now,
		LastUsedByIP:          &clientIP,
		SecurityStampSnapshot: &stamp,
	}
	if err := tx.Insert(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to store successor record: %w", err)
	}

	roles, err := m.identities.GetRoles(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve roles: %w", err)
	}
	accessToken, accessExpiry, err := m.issuer.Issue(u, roles, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, m.concurrencyError(logger, err, "failed to commit rotation")
	}

	logger.Debug().Str("next_digest_prefix", DigestPrefix(nextDigest)).Msg("refresh token rotated")
	return &Tokens{
		AccessToken:          accessToken,
		RefreshToken:         raw,
		AccessTokenExpiresAt: accessExpiry,
	}, nil
}

// Revoke retires a refresh token. Revoking an already revoked token is a no-op.
// An empty reason records RevokedByUser.
func (m *Manager) Revoke(ctx context.Context, rawRefresh, clientIP, reason string) (err error) {
	start := time.Now()
	defer func() { m.observe(OperationRevoke, start, err) }()

	if !m.acceptable(rawRefresh) {
		return ErrNotFound
	}
	if reason == "" {
		reason = ReasonRevokedByUser
	}

	now := m.now()
	digest := m.hasher.Digest(rawRefresh)
	logger := m.logger.With().Str("digest_prefix", DigestPrefix(digest)).Str("client_ip", clientIP).Logger()

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	rec, err := tx.GetByDigest(ctx, digest)
	if errors.Is(err, ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load refresh record: %w", err)
	}
	logger = logger.With().Str("subject_id", rec.SubjectID).Logger()

	if rec.RevokedAt != nil {
		logger.Debug().Msg("refresh token already revoked")
		return nil
	}

	expectedVersion := rec.Version
	rec.RevokedAt = &now
	rec.RevokedByIP = &clientIP
	rec.RevocationReason = &reason
	if err := tx.Update(ctx, rec, expectedVersion); err != nil {
		return m.revokeRace(logger, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return m.revokeRace(logger, err)
	}

	logger.Info().Str("reason", reason).Msg("refresh token revoked")
	return nil
}

// checkRotatable reports why rec cannot be rotated at now, if it cannot.
// Expiry is checked first so an expired record always reports ErrExpired.
func checkRotatable(rec *Record, now time.Time) error {
	switch {
	case rec.IsExpired(now):
		return ErrExpired
	case rec.ReplacedByDigest != nil:
		return ErrAlreadyRotated
	case rec.RevokedAt != nil:
		return ErrAlreadyRevoked
	case !rec.IsActive(now):
		return ErrInactiveToken
	}
	return nil
}

func (m *Manager) acceptable(raw string) bool {
	return raw != "" && len(raw) <= m.maxTokenLength
}

func (m *Manager) concurrencyError(logger zerolog.Logger, err error, msg string) error {
	if errors.Is(err, ErrVersionMismatch) {
		logger.Warn().Msg("rotate lost a concurrent race on the same refresh token")
		return ErrConcurrentReuse
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// revokeRace resolves a lost version race as the idempotent outcome: another
// writer already moved the record to a terminal state.
func (m *Manager) revokeRace(logger zerolog.Logger, err error) error {
	if errors.Is(err, ErrVersionMismatch) {
		logger.Debug().Msg("refresh token concurrently retired")
		return nil
	}
	return fmt.Errorf("failed to revoke refresh record: %w", err)
}

func (m *Manager) observe(operation string, start time.Time, err error) {
	if m.observer == nil {
		return
	}
	m.observer.ObserveOperation(operation, Outcome(err), time.Since(start))
}

// rollback runs even when ctx is cancelled so no transaction is left open.
func rollback(ctx context.Context, tx Tx) {
	_ = tx.Rollback(context.WithoutCancel(ctx))
}

// Outcome maps an operation error to a low-cardinality label
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyRotated):
		return "already_rotated"
	case errors.Is(err, ErrAlreadyRevoked):
		return "already_revoked"
	case errors.Is(err, ErrInactiveToken):
		return "inactive"
	case errors.Is(err, ErrSuspiciousReuse):
		return "suspicious_reuse"
	case errors.Is(err, ErrStaleCredentials):
		return "stale_credentials"
	case errors.Is(err, ErrConcurrentReuse):
		return "concurrent_reuse"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	default:
		return "error"
	}
}
