// Package auth guards the RPC surface with a single operator bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"
)

var errInvalidToken = errors.New("invalid operator token")

// OperatorInterceptor rejects calls whose bearer token does not match token.
// Every procedure is guarded; health checks are served outside Connect. An
// empty token disables the check, for local development only.
func OperatorInterceptor(token string, logger *zap.Logger) connect.UnaryInterceptorFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")
	if token == "" {
		logger.Warn("operator token not configured, RPC surface is unauthenticated")
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			if token == "" {
				return next(ctx, req)
			}
			if err := authorize(token, req.Header()); err != nil {
				logger.Debug("rejected call", zap.String("procedure", procedure), zap.Error(err))
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(ctx, req)
		}
	}
}

func authorize(token string, header http.Header) error {
	got, err := ExtractTokenFromHeader(header.Get("Authorization"))
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
		return errInvalidToken
	}
	return nil
}

// ExtractTokenFromHeader extracts the Bearer token from Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is required")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("authorization header must be Bearer token")
	}

	return parts[1], nil
}
