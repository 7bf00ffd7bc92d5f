package grpcserver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/and161185/ecm-core/internal/audit"
	"github.com/and161185/ecm-core/internal/limiter"
	"github.com/and161185/ecm-core/internal/service"
)

// ReasonAuthLocked marks calls refused because the peer failed authentication too often.
const ReasonAuthLocked = "AUTH_LOCKED"

// Methods under these prefixes are served without a token.
var publicPrefixes = []string{
	"/grpc.health.v1.",
	"/grpc.reflection.",
}

// AuthUnary verifies the bearer token of every call to ServiceName and
// attaches its subject to the context as the acting user. With a non-nil
// limiter, peers that fail verification too often are refused with
// ResourceExhausted until their block expires.
func AuthUnary(tokens service.TokenService, lim limiter.Limiter, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		for _, p := range publicPrefixes {
			if strings.HasPrefix(info.FullMethod, p) {
				return next(ctx, req)
			}
		}

		key := peerKey(ctx, lim)
		if key != nil {
			ok, left, err := lim.Allow(ctx, key)
			if err != nil {
				return nil, toStatus(err)
			}
			if !ok {
				return nil, lockedStatus(left)
			}
		}

		sub, err := verify(ctx, tokens)
		if err != nil {
			log.Debug("token rejected", zap.String("method", info.FullMethod), zap.Error(err))
			if key != nil {
				blocked, left, ferr := lim.Failure(ctx, key)
				if ferr != nil {
					log.Warn("record auth failure", zap.Error(ferr))
				} else if blocked {
					log.Warn("peer locked out", zap.String("method", info.FullMethod), zap.Duration("for", left))
				}
			}
			return nil, toStatus(err)
		}
		return next(audit.WithUser(ctx, sub), req)
	}
}

func verify(ctx context.Context, tokens service.TokenService) (string, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return "", err
	}
	return tokens.Verify(tok)
}

// peerKey is nil when limiting is off or the caller's address is unknown.
func peerKey(ctx context.Context, lim limiter.Limiter) []byte {
	if lim == nil {
		return nil
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return nil
	}
	return limiter.PeerKey(p.Addr.String())
}

func lockedStatus(retryAfter time.Duration) error {
	st := status.New(codes.ResourceExhausted, "too many failed authentications")
	if d, err := st.WithDetails(
		&errdetails.ErrorInfo{Reason: ReasonAuthLocked, Domain: ErrorDomain},
		&errdetails.RetryInfo{RetryDelay: durationpb.New(retryAfter)},
	); err == nil {
		st = d
	}
	return st.Err()
}
