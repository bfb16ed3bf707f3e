package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/tutor-match-api/internal/models"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
)

const defaultResolution = "Resolved by coordinator"

type conflictStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, conflict *models.Conflict) error
	AddRequest(ctx context.Context, exec sqlx.ExtContext, req *models.ConflictRequest) error
	GetByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Conflict, error)
	GetRequest(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ConflictRequest, error)
	ResolveRequest(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int64, resolution, resolvedBy string, at time.Time) error
	CloseIfComplete(ctx context.Context, exec sqlx.ExtContext, conflictID string, at time.Time) (bool, error)
	UpdateSummary(ctx context.Context, exec sqlx.ExtContext, conflict *models.Conflict) error
	ListOpen(ctx context.Context, exec sqlx.ExtContext) ([]models.Conflict, error)
	ResolvedBookings(ctx context.Context, exec sqlx.ExtContext, bookingIDs []string) (map[string]map[string]map[string]bool, error)
	List(ctx context.Context, filter models.ConflictFilter) ([]models.Conflict, error)
}

type bookingSnapshot interface {
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

// ConflictService materializes detected conflicts and resolves their requests.
type ConflictService struct {
	engineDeps
	store     conflictStore
	audit     auditWriter
	bookings  bookingSnapshot
	tx        txRunner
	detector  *ConflictDetector
	scanGroup singleflight.Group
	scanMu    sync.Mutex
}

// NewConflictService constructs the service.
func NewConflictService(store conflictStore, audit auditWriter, bookings bookingSnapshot, tx txRunner, detector *ConflictDetector, validate *validator.Validate, logger *zap.Logger, opts ...Option) *ConflictService {
	if detector == nil {
		detector = NewConflictDetector(DefaultConflictConfig())
	}
	return &ConflictService{
		engineDeps: newEngineDeps(validate, logger, opts),
		store:      store,
		audit:      audit,
		bookings:   bookings,
		tx:         tx,
		detector:   detector,
	}
}

// Scan detects conflicts in the given snapshot and reconciles them with the stored
// open conflicts. Re-running it on the same snapshot changes nothing.
func (s *ConflictService) Scan(ctx context.Context, snapshot []models.Booking, actor models.Actor) ([]models.Conflict, error) {
	if err := s.gate.Authorize(ActionScanConflicts, actor.Role); err != nil {
		return nil, err
	}
	normalized, err := normalizeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, normalized)
}

// normalizeSnapshot upper-cases booking statuses and rejects unknown ones.
func normalizeSnapshot(snapshot []models.Booking) ([]models.Booking, error) {
	normalized := make([]models.Booking, len(snapshot))
	for i, b := range snapshot {
		status, ok := models.ParseBookingStatus(string(b.Status))
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("booking %s has unknown status %q", b.ID, b.Status))
		}
		b.Status = status
		normalized[i] = b
	}
	return normalized, nil
}

// ScanStored scans the stored booking snapshot. Concurrent callers share one scan.
func (s *ConflictService) ScanStored(ctx context.Context, actor models.Actor) ([]models.Conflict, error) {
	if err := s.gate.Authorize(ActionScanConflicts, actor.Role); err != nil {
		return nil, err
	}
	if s.bookings == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "booking snapshot is not configured")
	}
	result, err, shared := s.scanGroup.Do("stored", func() (interface{}, error) {
		snapshot, err := s.bookings.ListBookings(ctx)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to read booking snapshot")
		}
		return s.scan(ctx, snapshot)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("conflict scan shared with a concurrent caller")
	}
	return result.([]models.Conflict), nil
}

func (s *ConflictService) scan(ctx context.Context, snapshot []models.Booking) ([]models.Conflict, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	release, err := s.lockRecord(ctx, "conflict-scan", "all")
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	now := s.now()
	detected := s.detector.Detect(snapshot, now)

	var (
		result  []models.Conflict
		opened  []models.ConflictType
		expired int
	)
	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		var txErr error
		result, opened, expired, txErr = s.reconcile(ctx, exec, detected, now)
		return txErr
	})
	if err != nil {
		return nil, storeError(err, "conflict not found", "failed to store conflicts")
	}

	for _, conflictType := range opened {
		s.metrics.RecordConflictOpened(conflictType)
	}
	s.metrics.ObserveScan(time.Since(started))
	s.logger.Info("conflict scan completed",
		zap.Int("bookings", len(snapshot)),
		zap.Int("open_conflicts", len(result)),
		zap.Int("opened", len(opened)),
		zap.Int("closed", expired),
	)
	return result, nil
}

// reconcile runs inside the scan transaction and must only touch exec.
func (s *ConflictService) reconcile(ctx context.Context, exec sqlx.ExtContext, detected []DetectedConflict, now time.Time) ([]models.Conflict, []models.ConflictType, int, error) {
	open, err := s.store.ListOpen(ctx, exec)
	if err != nil {
		return nil, nil, 0, err
	}
	openByKey := make(map[string]*models.Conflict, len(open))
	for i := range open {
		openByKey[open[i].OpenKey()] = &open[i]
	}

	bookingIDs := make([]string, 0)
	for _, d := range detected {
		for _, b := range d.Bookings {
			bookingIDs = append(bookingIDs, b.ID)
		}
	}
	handled, err := s.store.ResolvedBookings(ctx, exec, bookingIDs)
	if err != nil {
		return nil, nil, 0, err
	}

	ids := make([]string, 0, len(detected))
	seen := make(map[string]bool, len(detected))
	opened := make([]models.ConflictType, 0)
	for _, d := range detected {
		key := d.Key()
		if handledTogether(handled[key], d.Bookings) {
			continue
		}
		seen[key] = true

		existing, ok := openByKey[key]
		if !ok {
			conflict, err := s.openConflict(ctx, exec, d, now)
			if err != nil {
				return nil, nil, 0, err
			}
			opened = append(opened, conflict.Type)
			ids = append(ids, conflict.ID)
			continue
		}
		if err := s.refreshConflict(ctx, exec, existing, d, now); err != nil {
			return nil, nil, 0, err
		}
		ids = append(ids, existing.ID)
	}

	expired := 0
	for i := range open {
		conflict := &open[i]
		if seen[conflict.OpenKey()] {
			continue
		}
		for _, req := range conflict.Requests {
			if req.Status != models.ConflictStatusOpen {
				continue
			}
			if err := s.store.ResolveRequest(ctx, exec, req.ID, req.Version, models.ResolutionExternal, "", now); err != nil {
				return nil, nil, 0, err
			}
		}
		closed, err := s.store.CloseIfComplete(ctx, exec, conflict.ID, now)
		if err != nil {
			return nil, nil, 0, err
		}
		if closed {
			expired++
		}
	}

	result := make([]models.Conflict, 0, len(ids))
	for _, id := range ids {
		conflict, err := s.store.GetByID(ctx, exec, id)
		if err != nil {
			return nil, nil, 0, err
		}
		result = append(result, *conflict)
	}
	return result, opened, expired, nil
}

// handledTogether reports whether one earlier conflict already had a coordinator
// decision for every booking of the group.
func handledTogether(byConflict map[string]map[string]bool, bookings []models.Booking) bool {
	for _, decided := range byConflict {
		all := true
		for _, b := range bookings {
			if !decided[b.ID] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (s *ConflictService) openConflict(ctx context.Context, exec sqlx.ExtContext, d DetectedConflict, now time.Time) (*models.Conflict, error) {
	conflict := &models.Conflict{
		Type:       d.Type,
		Severity:   d.Severity,
		Resource:   d.Resource,
		Department: d.Department,
		Slot:       d.Slot,
		Details:    d.Details,
		CreatedAt:  now,
	}
	if err := s.store.Create(ctx, exec, conflict); err != nil {
		return nil, err
	}
	for _, b := range d.Bookings {
		if err := s.store.AddRequest(ctx, exec, requestFor(conflict.ID, b)); err != nil {
			return nil, err
		}
	}
	return conflict, nil
}

// refreshConflict appends new bookings, closes requests whose booking left the group
// and updates the derived summary when it changed. A booking that already carries an
// open or coordinator-resolved request in this conflict is not added again.
func (s *ConflictService) refreshConflict(ctx context.Context, exec sqlx.ExtContext, existing *models.Conflict, d DetectedConflict, now time.Time) error {
	current := make(map[string]bool, len(d.Bookings))
	for _, b := range d.Bookings {
		current[b.ID] = true
	}
	pending := make(map[string]bool, len(existing.Requests))
	for _, req := range existing.Requests {
		if req.Status != models.ConflictStatusOpen {
			if req.Resolution != nil && *req.Resolution != models.ResolutionExternal {
				pending[req.BookingID] = true
			}
			continue
		}
		pending[req.BookingID] = true
		if !current[req.BookingID] {
			if err := s.store.ResolveRequest(ctx, exec, req.ID, req.Version, models.ResolutionExternal, "", now); err != nil {
				return err
			}
		}
	}
	for _, b := range d.Bookings {
		if pending[b.ID] {
			continue
		}
		if err := s.store.AddRequest(ctx, exec, requestFor(existing.ID, b)); err != nil {
			return err
		}
	}

	if existing.Severity == d.Severity && existing.Department == d.Department && existing.Slot == d.Slot && existing.Details == d.Details {
		return nil
	}
	existing.Severity = d.Severity
	existing.Department = d.Department
	existing.Slot = d.Slot
	existing.Details = d.Details
	return s.store.UpdateSummary(ctx, exec, existing)
}

func requestFor(conflictID string, b models.Booking) *models.ConflictRequest {
	return &models.ConflictRequest{
		ConflictID: conflictID,
		BookingID:  b.ID,
		StudentID:  b.StudentID,
		Course:     b.Course,
		Slot:       b.SlotLabel(),
	}
}

// Get returns one conflict with its requests.
func (s *ConflictService) Get(ctx context.Context, id string, actor models.Actor) (*models.Conflict, error) {
	if err := s.gate.Authorize(ActionReadConflicts, actor.Role); err != nil {
		return nil, err
	}
	conflict, err := s.store.GetByID(ctx, nil, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err, "conflict not found", "failed to load conflict")
	}
	return conflict, nil
}

// ResolveRequest closes one OPEN conflict request, closes the parent once every
// request is resolved, and records the decision in the audit log.
func (s *ConflictService) ResolveRequest(ctx context.Context, requestID, resolution string, actor models.Actor) (*models.Conflict, error) {
	if err := s.gate.Authorize(ActionResolveConflict, actor.Role); err != nil {
		return nil, err
	}
	requestID = strings.TrimSpace(requestID)
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		resolution = defaultResolution
	}

	release, err := s.lockRecord(ctx, "conflict-request", requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := s.store.GetRequest(ctx, nil, requestID)
	if err != nil {
		return nil, storeError(err, "conflict request not found", "failed to load conflict request")
	}
	if req.Status != models.ConflictStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrConflict, "")
	}

	now := s.now()
	var conflict *models.Conflict
	err = s.tx.WithTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.store.ResolveRequest(ctx, exec, req.ID, req.Version, resolution, actor.ID, now); err != nil {
			return err
		}
		closed, err := s.store.CloseIfComplete(ctx, exec, req.ConflictID, now)
		if err != nil {
			return err
		}
		if err := s.audit.Create(ctx, exec, &models.AuditLog{
			ActorID:      actor.ID,
			ActorRole:    canonicalRole(actor.Role),
			Action:       models.AuditActionConflictResolved,
			ResourceType: models.AuditResourceConflictRequest,
			ResourceID:   req.ID,
			Details: auditDetails(map[string]interface{}{
				"conflictId":     req.ConflictID,
				"bookingId":      req.BookingID,
				"resolution":     resolution,
				"conflictClosed": closed,
			}),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		conflict, err = s.store.GetByID(ctx, exec, req.ConflictID)
		return err
	})
	if err != nil {
		return nil, storeError(err, "conflict not found", "failed to resolve conflict request")
	}

	s.logger.Info("conflict request resolved",
		zap.String("request_id", req.ID),
		zap.String("conflict_id", req.ConflictID),
		zap.String("actor_id", actor.ID),
		zap.String("conflict_status", string(conflict.Status)),
	)
	return conflict, nil
}
