package signer

import (
	"log/slog"
	"net/http"

	"markers/internal/platform/middleware"
	dErrors "markers/pkg/domain-errors"
	"markers/pkg/platform/httputil"
)

// maxAssertions bounds the work a single request can ask the verifier to do.
const maxAssertions = 8

// RequireAssertions verifies every X-Signer-Assertion header and stores the
// results on the request context. Any invalid assertion rejects the request.
// Requests without assertions pass through with an empty signer set.
func RequireAssertions(v *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokens := r.Header.Values(HeaderName)
			if len(tokens) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if len(tokens) > maxAssertions {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "too many signer assertions"))
				return
			}

			assertions := make([]Assertion, 0, len(tokens))
			for _, token := range tokens {
				a, err := v.Verify(ctx, token)
				if err != nil {
					logger.WarnContext(ctx, "signer assertion rejected",
						"request_id", middleware.GetRequestID(ctx),
						"error", err.Error(),
					)
					httputil.WriteError(w, err)
					return
				}
				assertions = append(assertions, *a)
			}
			next.ServeHTTP(w, r.WithContext(WithAssertions(ctx, assertions)))
		})
	}
}
