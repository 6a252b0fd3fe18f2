package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/skitter-project/skitter/pkg/log"
	"github.com/skitter-project/skitter/pkg/metrics"
)

// LoggingInterceptor logs every Dispatch call with its envelope tag and
// outcome, adapted from the teacher's gRPC interceptor idiom (pkg/api's
// ReadOnlyInterceptor) but retargeted from method-name filtering — there's
// only one method, Dispatch — to per-tag observability, since tag is what
// actually varies call to call here.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	logger := log.WithComponent("transport")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		env, _ := req.(*Envelope)
		timer := metrics.NewTimer()

		resp, err := handler(ctx, req)

		tag := "unknown"
		if env != nil {
			tag = env.Tag
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.APIRequestsTotal.WithLabelValues(tag, status).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, tag)

		if err != nil {
			logger.Error().Err(err).Str("tag", tag).Dur("duration", timer.Duration()).Msg("dispatch failed")
		} else {
			logger.Debug().Str("tag", tag).Dur("duration", timer.Duration()).Msg("dispatch handled")
		}
		return resp, err
	}
}
