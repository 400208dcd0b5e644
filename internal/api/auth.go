package api

import (
	"context"
	"strings"
	"time"

	"salon/internal/auth"
	"salon/internal/domain"
	"salon/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	authorizationMetadataKey = "authorization"
	requestIDMetadataKey     = "x-request-id"
	clientKeyUnknown         = "unknown"
)

// AuthInterceptor checks the bearer token of every call against the role
// policies and applies the per-caller rate limit.
type AuthInterceptor struct {
	tokens     *auth.TokenIssuer
	authorizer *auth.Authorizer
	limiter    *rateLimiter
	logger     *zerolog.Logger
}

func NewAuthInterceptor(deps Deps, limiter *rateLimiter, logger *zerolog.Logger) *AuthInterceptor {
	return &AuthInterceptor{tokens: deps.Tokens, authorizer: deps.Authorizer, limiter: limiter, logger: logger}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		claims, err := a.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		if !a.limiter.allow(claims.Subject) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(context.WithValue(ctx, claimsKey, claims), req)
	}
}

func (a *AuthInterceptor) authenticate(ctx context.Context, fullMethod string) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}
	raw, ok := bearerToken(first(md.Get(authorizationMetadataKey)))
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	claims, err := a.tokens.Parse(raw)
	if err != nil {
		return nil, grpcError(a.logger, err)
	}
	allowed, err := a.authorizer.Allowed(claims.Role, fullMethod, auth.ActionCall)
	if err != nil {
		return nil, grpcError(a.logger, err)
	}
	if !allowed {
		return nil, grpcError(a.logger, domain.ErrForbidden)
	}
	return claims, nil
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		reqLogger := base.With().Str("request_id", requestID).Logger()
		ctx = context.WithValue(ctx, loggerKey, &reqLogger)

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.IncGRPC(info.FullMethod, code.String())

		remote := clientKeyUnknown
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		reqLogger.Info().
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if id := first(md.Get(requestIDMetadataKey)); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
