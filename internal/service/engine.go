package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/lock"
)

const defaultLockTTL = 5 * time.Second

// txRunner runs a unit of work in one store transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type auditWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.AuditLog) error
}

// engineDeps carries the collaborators every engine service shares.
type engineDeps struct {
	gate      authorizer
	locker    lock.Locker
	lockTTL   time.Duration
	metrics   *MetricsService
	clock     func() time.Time
	logger    *zap.Logger
	validator *validator.Validate
}

// Option configures an engine service.
type Option func(*engineDeps)

// WithAuthorizer overrides the default authorization gate.
func WithAuthorizer(gate authorizer) Option {
	return func(d *engineDeps) {
		if gate != nil {
			d.gate = gate
		}
	}
}

// WithLocker sets the record locker and the lock lifetime.
func WithLocker(locker lock.Locker, ttl time.Duration) Option {
	return func(d *engineDeps) {
		if locker != nil {
			d.locker = locker
		}
		if ttl > 0 {
			d.lockTTL = ttl
		}
	}
}

// WithMetrics attaches domain counters.
func WithMetrics(metrics *MetricsService) Option {
	return func(d *engineDeps) {
		d.metrics = metrics
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(d *engineDeps) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func newEngineDeps(validate *validator.Validate, logger *zap.Logger, opts []Option) engineDeps {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	deps := engineDeps{
		gate:      NewAuthorizationService(),
		locker:    lock.NewLocalLocker(),
		lockTTL:   defaultLockTTL,
		clock:     time.Now,
		logger:    logger,
		validator: validate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	return deps
}

func (d *engineDeps) now() time.Time {
	return d.clock().UTC()
}

// lockRecord takes the fail-fast lock of one record. A held lock is a ConflictError.
func (d *engineDeps) lockRecord(ctx context.Context, kind, id string) (func(), error) {
	release, err := d.locker.TryLock(ctx, kind+":"+id, d.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			d.metrics.RecordLockContention(kind)
			d.logger.Debug("record lock busy", zap.String("kind", kind), zap.String("id", id))
			return nil, appErrors.Clone(appErrors.ErrConflict, "")
		}
		return nil, appErrors.Internal(err, "failed to acquire record lock")
	}
	return release, nil
}

// storeError maps repository failures onto the engine taxonomy.
func storeError(err error, notFound, internal string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	case errors.Is(err, repository.ErrVersionConflict):
		return appErrors.Clone(appErrors.ErrConflict, "")
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return appErrors.Internal(err, internal)
}

func auditDetails(details map[string]interface{}) types.JSONText {
	payload, err := json.Marshal(details)
	if err != nil {
		return types.JSONText(`{}`)
	}
	return types.JSONText(payload)
}

func canonicalRole(raw string) models.UserRole {
	role, _ := models.ParseRole(raw)
	return role
}
