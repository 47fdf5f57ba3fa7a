package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"markers/internal/marker/models"
	"markers/internal/marker/service"
	"markers/internal/platform/metrics"
	"markers/internal/platform/middleware"
	"markers/internal/signer"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/httputil"
)

// maxBodyBytes caps request bodies; every payload is a handful of keys.
const maxBodyBytes = 16 << 10

// Service defines the marker operations exposed over HTTP.
type Service interface {
	CreateMarker(ctx context.Context, req *models.CreateMarkerRequest, signers signer.Set) (*models.Marker, error)
	UpdateOwner(ctx context.Context, req *models.UpdateOwnerRequest, signers signer.Set) (*models.Marker, error)
	BurnMarkerAndMint(ctx context.Context, req *models.BurnRequest, signers signer.Set) (*models.Reclaim, error)
	BurnMarkerOnly(ctx context.Context, req *models.BurnRequest, signers signer.Set) (*models.Reclaim, error)
	GetMarker(ctx context.Context, name string) (*models.Marker, error)
	DeriveAddress(ctx context.Context, name string) (domain.Address, uint8, error)
}

// AddressResponse describes where a domain's record lives.
type AddressResponse struct {
	Domain  string         `json:"domain"`
	Address domain.Address `json:"address"`
	Bump    uint8          `json:"bump"`
}

// Handler serves the marker routes.
type Handler struct {
	logger   *slog.Logger
	markers  Service
	metrics  *metrics.Metrics
	verifier *signer.Verifier
	limit    func(http.Handler) http.Handler
	proxies  []netip.Prefix
	timeout  time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit installs a limiter ahead of signature checks.
func WithRateLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.limit = mw
	}
}

// WithTrustedProxies lists the peers whose forwarding headers name the client.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(h *Handler) {
		h.proxies = prefixes
	}
}

// New creates a marker Handler. A nil verifier serves every request with an
// empty signer set, so only reads succeed.
func New(markers Service, verifier *signer.Verifier, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		markers:  markers,
		metrics:  m,
		verifier: verifier,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the marker routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	markerRouter := chi.NewRouter()
	markerRouter.Use(middleware.Recovery(h.logger))
	markerRouter.Use(middleware.RequestID)
	markerRouter.Use(middleware.ClientMetadata(h.proxies))
	markerRouter.Use(middleware.Logger(h.logger))
	markerRouter.Use(middleware.Timeout(h.timeout))
	markerRouter.Use(middleware.ContentTypeJSON)
	markerRouter.Use(middleware.LatencyMiddleware(h.metrics))
	if h.limit != nil {
		markerRouter.Use(h.limit)
	}
	if h.verifier != nil {
		markerRouter.Use(signer.RequireAssertions(h.verifier, h.logger))
	}

	markerRouter.Post("/markers", h.handleCreate)
	markerRouter.Get("/markers/{domain}", h.handleGet)
	markerRouter.Get("/markers/{domain}/address", h.handleAddress)
	markerRouter.Get("/markers/{domain}/raw", h.handleRaw)
	markerRouter.Post("/markers/{domain}/owner", h.handleUpdateOwner)
	markerRouter.Post("/markers/{domain}/burn", h.handleBurn)
	markerRouter.Post("/markers/{domain}/burn-orphan", h.handleBurnOrphan)

	r.Mount("/", markerRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateMarkerRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Normalize()

	signers := signer.ScopedSet(ctx, signer.Scope(service.OpCreate, req.Domain))
	m, err := h.markers.CreateMarker(ctx, &req, signers)
	if err != nil {
		h.writeError(ctx, w, "create marker", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	m, err := h.markers.GetMarker(ctx, name)
	if err != nil {
		h.writeError(ctx, w, "get marker", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	addr, bump, err := h.markers.DeriveAddress(ctx, name)
	if err != nil {
		h.writeError(ctx, w, "derive address", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AddressResponse{Domain: name, Address: addr, Bump: bump})
}

// handleRaw returns the fixed-size on-ledger layout of the record.
func (h *Handler) handleRaw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	m, err := h.markers.GetMarker(ctx, name)
	if err != nil {
		h.writeError(ctx, w, "get marker", err)
		return
	}
	data, err := m.MarshalBinary()
	if err != nil {
		h.writeError(ctx, w, "encode marker", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode marker"))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	var req models.UpdateOwnerRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Domain = name

	signers := signer.ScopedSet(ctx, signer.Scope(service.OpUpdateOwner, name))
	m, err := h.markers.UpdateOwner(ctx, &req, signers)
	if err != nil {
		h.writeError(ctx, w, "update owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

func (h *Handler) handleBurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	var req models.BurnRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Domain = name

	signers := signer.ScopedSet(ctx, signer.Scope(service.OpBurn, name))
	reclaim, err := h.markers.BurnMarkerAndMint(ctx, &req, signers)
	if err != nil {
		h.writeError(ctx, w, "burn marker", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reclaim)
}

func (h *Handler) handleBurnOrphan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	var req models.BurnRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	req.Domain = name

	signers := signer.ScopedSet(ctx, signer.Scope(service.OpBurnOrphan, name))
	reclaim, err := h.markers.BurnMarkerOnly(ctx, &req, signers)
	if err != nil {
		h.writeError(ctx, w, "burn orphan marker", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reclaim)
}

func (h *Handler) domainParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "domain"))
	if err != nil || name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid domain in path"))
		return "", false
	}
	return name, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid marker request body",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, "failed to "+action,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
