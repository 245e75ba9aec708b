package host

import (
	"errors"
	"fmt"
	"slices"

	"github.com/on-the-ground/effect_ive_runtime/effects/assembly"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

var ErrCorsPolicy = errors.New("host: invalid cors policy")

// newCors builds the CORS middleware for policy. An empty origin list and a
// wildcard origin combined with credentials are both rejected.
func newCors(policy assembly.ConfigureCors, logger *zap.Logger) (*cors.Cors, error) {
	if len(policy.AllowOrigins) == 0 {
		return nil, fmt.Errorf("%w: no allowed origins", ErrCorsPolicy)
	}
	if policy.AllowCredentials && slices.Contains(policy.AllowOrigins, "*") {
		return nil, fmt.Errorf("%w: wildcard origin with credentials", ErrCorsPolicy)
	}

	opts := cors.Options{
		AllowedOrigins:   policy.AllowOrigins,
		AllowedMethods:   policy.AllowMethods,
		AllowedHeaders:   policy.AllowHeaders,
		AllowCredentials: policy.AllowCredentials,
	}
	if stdLog, err := zap.NewStdLogAt(logger.Named("cors"), zap.DebugLevel); err == nil {
		opts.Logger = stdLog
	}
	return cors.New(opts), nil
}
