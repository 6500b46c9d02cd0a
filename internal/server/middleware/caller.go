package middleware

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

type callerKey struct{}

// Caller returns middleware that extracts the caller's wallet address from
// the X-Caller-Address header, normalizes it to its checksummed form, and
// stores it in the request context. Requests without the header pass through;
// handlers that require a caller reject those themselves. A malformed address
// is rejected here so no handler ever sees one.
func Caller() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := r.Header.Get("X-Caller-Address")
			if addr == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !common.IsHexAddress(addr) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid caller address"}`))
				return
			}

			checksummed := common.HexToAddress(addr).Hex()
			ctx := context.WithValue(r.Context(), callerKey{}, checksummed)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerAddress returns the checksummed caller address stored by the Caller
// middleware, or "" when the request carried none.
func CallerAddress(ctx context.Context) string {
	addr, _ := ctx.Value(callerKey{}).(string)
	return addr
}
