// Package auth authenticates trading partners on the segment API.
//
// Partners present an API key in the x-api-key metadata header. Keys are
// never stored: the database holds HMAC-SHA256(secret, key), and the secret
// is selected by the secret_id embedded in the key itself.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/x12keeper/internal/logger"
	"github.com/solatis/x12keeper/internal/types"
)

type contextKey string

const partnerIDKey = contextKey("partner_id")

// APIKeyHeader is the metadata key carrying the partner's API key.
const APIKeyHeader = "x-api-key"

// lastUsedThrottle bounds how often last_used_at is written per key.
const lastUsedThrottle = time.Minute

// Queries is the subset of *db.Queries used for key lookup.
type Queries interface {
	Get(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	Exec(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
}

// Authenticator validates API keys against stored HMAC hashes.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator over secret_id -> secret.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

// Authenticate validates apiKey and returns the owning partner.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.PartnerID, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	var result struct {
		PartnerID  string       `db:"partner_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		APIKeyID   string       `db:"api_key_id"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, ComputeHMAC(secret, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	if a.shouldUpdateLastUsed(result.LastUsedAt) {
		// Best effort; a failed touch must not reject a valid key.
		_, _ = a.queries.Exec(ctx, "update-last-used", a.now().UTC(), result.APIKeyID)
	}

	return types.PartnerID(result.PartnerID), nil
}

func (a *Authenticator) shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return a.now().Sub(lastUsed.Time) > lastUsedThrottle
}

// UnaryInterceptor authenticates every unary call except those listed in
// skip (full method names, e.g. the health check).
func (a *Authenticator) UnaryInterceptor(skip ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(skip))
	for _, m := range skip {
		open[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(APIKeyHeader)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		partnerID, err := a.Authenticate(ctx, apiKeys[0])
		switch {
		case err == nil:
		case errors.Is(err, ErrKeyRevoked):
			return nil, status.Error(codes.PermissionDenied, err.Error())
		case errors.Is(err, ErrStorage):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = logger.With(ctx, zap.String("partner_id", string(partnerID)))
		return handler(ContextWithPartnerID(ctx, partnerID), req)
	}
}

// ContextWithPartnerID returns ctx carrying the authenticated partner.
func ContextWithPartnerID(ctx context.Context, partnerID types.PartnerID) context.Context {
	return context.WithValue(ctx, partnerIDKey, partnerID)
}

// PartnerIDFromContext extracts the authenticated partner.
// Returns empty string if not found.
func PartnerIDFromContext(ctx context.Context) types.PartnerID {
	if partnerID, ok := ctx.Value(partnerIDKey).(types.PartnerID); ok {
		return partnerID
	}
	return ""
}
