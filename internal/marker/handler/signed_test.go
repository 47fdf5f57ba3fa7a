package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markers/internal/custody"
	"markers/internal/marker/address"
	"markers/internal/marker/service"
	"markers/internal/marker/store"
	"markers/internal/signer"
	"markers/pkg/domain"
	dErrors "markers/pkg/domain-errors"
	"markers/pkg/testutil"
)

const testAudience = "markers-test"

func newSignedRouter(t *testing.T) http.Handler {
	t.Helper()
	programID, err := domain.ParseKey("7GAzi1mmd9CT3kgV8vL1RbvQJyTNYRjYfuJ7rV42vVoi")
	require.NoError(t, err)

	st := store.NewInMemory()
	svc, err := service.New(st, service.NewShardedTx(st, time.Second), custody.NewInMemoryLedger(), address.NewDeriver(programID))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := signer.NewVerifier(testAudience, 5*time.Minute, signer.WithReplayGuard(signer.NewInMemoryReplayGuard()))
	r := chi.NewRouter()
	New(svc, verifier, logger, nil).Register(r)
	return r
}

func TestSignedLifecycle(t *testing.T) {
	router := newSignedRouter(t)
	authority, authorityKey := testutil.NewSigner(t)
	payer, payerKey := testutil.NewSigner(t)
	createScope := signer.Scope(service.OpCreate, "plain.shop")

	testutil.Given(t, "an ungated marker request signed by payer and authority", func(t *testing.T) {
		body := map[string]any{
			"domain":    "plain.shop",
			"payer":     payer.String(),
			"authority": authority.String(),
		}

		testutil.When(t, "only the payer signs", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/markers", body)
			req = testutil.SignRequest(t, req, payerKey, testAudience, createScope)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the request is unauthorized", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
			})
		})

		testutil.When(t, "both sign for the create scope", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/markers", body)
			req = testutil.SignRequest(t, req, payerKey, testAudience, createScope)
			req = testutil.SignRequest(t, req, authorityKey, testAudience, createScope)
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the marker is created", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusCreated)
			})
		})

		testutil.When(t, "an assertion is replayed", func(t *testing.T) {
			token, err := signer.Sign(payerKey, testAudience, createScope, time.Minute)
			require.NoError(t, err)

			first := testutil.NewJSONRequest(t, http.MethodPost, "/markers", body)
			first.Header.Add(signer.HeaderName, token)
			_ = testutil.DoRequest(router, first)

			again := testutil.NewJSONRequest(t, http.MethodPost, "/markers", body)
			again.Header.Add(signer.HeaderName, token)
			rr := testutil.DoRequest(router, again)

			testutil.Then(t, "the replay is rejected before the service runs", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
				body := testutil.UnmarshalErrorResponse(t, rr)
				assert.Equal(t, "signer assertion already used", body["error_description"])
			})
		})

		testutil.When(t, "the payer signs an orphan burn", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/markers/plain.shop/burn-orphan")
			req = testutil.SignRequest(t, req, payerKey, testAudience, signer.Scope(service.OpBurnOrphan, "plain.shop"))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "only the authority may burn", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			})
		})

		testutil.When(t, "the authority signs an orphan burn", func(t *testing.T) {
			req := testutil.NewRequest(t, http.MethodPost, "/markers/plain.shop/burn-orphan")
			req = testutil.SignRequest(t, req, authorityKey, testAudience, signer.Scope(service.OpBurnOrphan, "plain.shop"))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the deposit returns to the authority", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "beneficiary", authority.String())
			})
		})
	})
}
