package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"markers/internal/audit"
	"markers/internal/marker/metrics"
	"markers/internal/marker/models"
	"markers/internal/signer"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/sentinel"
	"markers/pkg/requestcontext"
)

var tracer = otel.Tracer("marker")

// Operation names. They double as the verb in signer assertion scopes.
const (
	OpCreate      = "create"
	OpUpdateOwner = "update_owner"
	OpBurn        = "burn"
	OpBurnOrphan  = "burn_orphan"
)

// Store persists marker records by derived address.
type Store interface {
	Create(ctx context.Context, m *models.Marker) error
	FindByAddress(ctx context.Context, addr domain.Address) (*models.Marker, error)
	Update(ctx context.Context, m *models.Marker) error
	Delete(ctx context.Context, addr domain.Address) error
}

// Custody is the token ledger consulted for possession proofs.
type Custody interface {
	AmountOf(ctx context.Context, account domain.AccountRef) (uint64, error)
	OwnerOf(ctx context.Context, account domain.AccountRef) (domain.Key, error)
	MintOf(ctx context.Context, account domain.AccountRef) (domain.MintRef, error)
	Burn(ctx context.Context, mint domain.MintRef, account domain.AccountRef, authority domain.Key) error
}

// AddressDeriver recomputes record addresses from domain names.
type AddressDeriver interface {
	Derive(name string) (domain.Address, uint8, error)
	Verify(name string, claimed domain.Address) (domain.Address, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the marker lifecycle. Every mutation re-derives the record
// address, validates signers and custody, and commits inside one StoreTx.
type Service struct {
	store          Store
	tx             StoreTx
	custody        Custody
	deriver        AddressDeriver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, tx StoreTx, custody Custody, deriver AddressDeriver, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if tx == nil {
		return nil, errors.New("marker transaction runner is required")
	}
	if custody == nil {
		return nil, errors.New("custody ledger is required")
	}
	if deriver == nil {
		return nil, errors.New("address deriver is required")
	}
	s := &Service{store: store, tx: tx, custody: custody, deriver: deriver}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateMarker allocates the record for req.Domain.
func (s *Service) CreateMarker(ctx context.Context, req *models.CreateMarkerRequest, signers signer.Set) (marker *models.Marker, err error) {
	ctx, span := tracer.Start(ctx, "Marker.Service.CreateMarker", trace.WithAttributes(attribute.String("marker.domain", req.Domain)))
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, OpCreate, req.Domain, start, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateDomain(req.Domain); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, dErrors.MessageOf(err))
	}
	addr, err := s.deriver.Verify(req.Domain, req.Address)
	if err != nil {
		return nil, err
	}

	required := []domain.Key{req.Payer, req.Authority}
	if req.Owner != req.Payer {
		required = append(required, req.Owner)
	}
	if err := requireSigners(signers, required...); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, addr, func(ctx context.Context, store Store) error {
		if _, err := store.FindByAddress(ctx, addr); err == nil {
			return dErrors.New(dErrors.CodeRecordAlreadyExists, "marker already exists for domain")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load marker")
		}

		if !req.Mint.IsZero() {
			if err := s.checkCustody(ctx, req.Owner, req.Mint, req.TokenAccount); err != nil {
				return err
			}
		}

		m, err := models.NewMarker(addr, req.Authority, req.Owner, req.Domain, req.Mint, now)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, dErrors.MessageOf(err))
		}
		if err := store.Create(ctx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeRecordAlreadyExists, "marker already exists for domain")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create marker")
		}
		marker = m
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.emit(ctx, audit.Event{
		Type:      audit.EventMarkerCreated,
		Domain:    marker.Domain,
		Address:   marker.Address.String(),
		Authority: marker.Authority.String(),
		Owner:     marker.Owner.String(),
		Mint:      mintText(marker.Mint),
	})
	return marker, nil
}

// UpdateOwner hands the marker to req.NewOwner. The stored authority must sign
// and the new owner must hold the marker's mint in req.TokenAccount.
func (s *Service) UpdateOwner(ctx context.Context, req *models.UpdateOwnerRequest, signers signer.Set) (marker *models.Marker, err error) {
	ctx, span := tracer.Start(ctx, "Marker.Service.UpdateOwner", trace.WithAttributes(attribute.String("marker.domain", req.Domain)))
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, OpUpdateOwner, req.Domain, start, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	addr, err := s.deriver.Verify(req.Domain, req.Address)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	err = s.tx.RunInTx(ctx, addr, func(ctx context.Context, store Store) error {
		m, err := loadMarker(ctx, store, addr)
		if err != nil {
			return err
		}
		if err := hasOne(signers, m.Authority, "authority"); err != nil {
			return err
		}
		if !m.IsGated() {
			return dErrors.New(dErrors.CodeInvalidCustodyProof, "marker is not token-gated")
		}
		if err := s.checkCustody(ctx, req.NewOwner, m.Mint, req.TokenAccount); err != nil {
			return err
		}

		m.ApplyOwner(req.NewOwner, now)
		if err := store.Update(ctx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update marker")
		}
		marker = m
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	s.emit(ctx, audit.Event{
		Type:      audit.EventMarkerOwnerUpdated,
		Domain:    marker.Domain,
		Address:   marker.Address.String(),
		Authority: marker.Authority.String(),
		Owner:     marker.Owner.String(),
		Mint:      mintText(marker.Mint),
	})
	return marker, nil
}

// BurnMarkerAndMint burns one unit of the marker's mint from the owner's token
// account and deletes the record. The burn runs inside the transaction before
// the delete, so a failed burn leaves the record intact.
func (s *Service) BurnMarkerAndMint(ctx context.Context, req *models.BurnRequest, signers signer.Set) (reclaim *models.Reclaim, err error) {
	ctx, span := tracer.Start(ctx, "Marker.Service.BurnMarkerAndMint", trace.WithAttributes(attribute.String("marker.domain", req.Domain)))
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, OpBurn, req.Domain, start, err) }()

	if err := req.Validate(true); err != nil {
		return nil, err
	}
	addr, err := s.deriver.Verify(req.Domain, req.Address)
	if err != nil {
		return nil, err
	}

	var burned *models.Marker
	err = s.tx.RunInTx(ctx, addr, func(ctx context.Context, store Store) error {
		m, err := loadMarker(ctx, store, addr)
		if err != nil {
			return err
		}
		if err := hasOne(signers, m.Authority, "authority"); err != nil {
			return err
		}
		if err := hasOne(signers, m.Owner, "owner"); err != nil {
			return err
		}
		if !m.IsGated() {
			return dErrors.New(dErrors.CodeInvalidCustodyProof, "marker is not token-gated")
		}
		if err := s.checkCustody(ctx, m.Owner, m.Mint, req.TokenAccount); err != nil {
			return err
		}

		if err := s.custody.Burn(ctx, m.Mint, req.TokenAccount, m.Owner); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTokenBurnFailed, "failed to burn possession token")
		}
		if err := store.Delete(ctx, addr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete marker")
		}
		burned = m
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	reclaim = burned.Reclaim()
	if s.metrics != nil {
		s.metrics.IncrementTokensBurned()
		s.metrics.AddReclaimed(reclaim.Amount)
	}
	s.emit(ctx, audit.Event{
		Type:      audit.EventMarkerBurned,
		Domain:    burned.Domain,
		Address:   burned.Address.String(),
		Authority: burned.Authority.String(),
		Owner:     burned.Owner.String(),
		Mint:      mintText(burned.Mint),
		Reclaimed: reclaim.Amount,
	})
	return reclaim, nil
}

// BurnMarkerOnly deletes a marker whose token was destroyed out of band.
// Only the authority signs and the custody ledger is never consulted.
func (s *Service) BurnMarkerOnly(ctx context.Context, req *models.BurnRequest, signers signer.Set) (reclaim *models.Reclaim, err error) {
	ctx, span := tracer.Start(ctx, "Marker.Service.BurnMarkerOnly", trace.WithAttributes(attribute.String("marker.domain", req.Domain)))
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, OpBurnOrphan, req.Domain, start, err) }()

	if err := req.Validate(false); err != nil {
		return nil, err
	}
	addr, err := s.deriver.Verify(req.Domain, req.Address)
	if err != nil {
		return nil, err
	}

	var burned *models.Marker
	err = s.tx.RunInTx(ctx, addr, func(ctx context.Context, store Store) error {
		m, err := loadMarker(ctx, store, addr)
		if err != nil {
			return err
		}
		if err := hasOne(signers, m.Authority, "authority"); err != nil {
			return err
		}
		if err := store.Delete(ctx, addr); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete marker")
		}
		burned = m
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	reclaim = burned.Reclaim()
	if s.metrics != nil {
		s.metrics.AddReclaimed(reclaim.Amount)
	}
	s.emit(ctx, audit.Event{
		Type:      audit.EventMarkerOrphanBurned,
		Domain:    burned.Domain,
		Address:   burned.Address.String(),
		Authority: burned.Authority.String(),
		Owner:     burned.Owner.String(),
		Mint:      mintText(burned.Mint),
		Reclaimed: reclaim.Amount,
	})
	return reclaim, nil
}

// GetMarker reads the record for an exact domain name.
func (s *Service) GetMarker(ctx context.Context, name string) (*models.Marker, error) {
	ctx, span := tracer.Start(ctx, "Marker.Service.GetMarker")
	defer span.End()

	addr, _, err := s.deriver.Derive(name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	m, err := loadMarker(ctx, s.store, addr)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return m, nil
}

// DeriveAddress returns the address and bump a domain name maps to, whether
// or not a record exists there.
func (s *Service) DeriveAddress(_ context.Context, name string) (domain.Address, uint8, error) {
	return s.deriver.Derive(name)
}

func loadMarker(ctx context.Context, store Store, addr domain.Address) (*models.Marker, error) {
	m, err := store.FindByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeRecordNotFound, "marker not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load marker")
	}
	return m, nil
}

// translateTxError maps infrastructure failures surfacing from the transaction
// runner. Coded errors from inside the callback pass through untouched.
func translateTxError(err error) error {
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update on marker")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "marker transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "marker transaction failed")
}

func (s *Service) finish(ctx context.Context, span trace.Span, op, name string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		code := dErrors.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		s.logRejection(ctx, op, name, err)
		if code != dErrors.CodeInternal {
			s.emit(ctx, audit.Event{
				Type:      audit.EventMarkerRejected,
				Domain:    name,
				Operation: op,
				Reason:    string(code),
			})
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, outcome, start)
	}
}

func (s *Service) logRejection(ctx context.Context, op, name string, err error) {
	if s.logger == nil {
		return
	}
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"domain", name,
		"error", err.Error(),
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		s.logger.ErrorContext(ctx, "marker operation failed", args...)
		return
	}
	s.logger.WarnContext(ctx, "marker operation rejected", args...)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"type", string(event.Type),
			"error", err.Error(),
		)
	}
}

func mintText(m domain.MintRef) string {
	if m.IsZero() {
		return ""
	}
	return m.String()
}
