package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// loggable is implemented by messages that carry a deal, MID, adjustment
// group or sync scope worth putting on the log line.
type loggable interface {
	LogAttrs() []slog.Attr
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, operator, duration and the identifiers the request
// targets. Successful calls add the response's counts. Client errors log at
// Warn with their code; internal errors log at Error.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			attrs := []slog.Attr{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("operator_id", GetOperatorID(ctx)), // empty if pre-auth
			}
			if m, ok := req.Any().(loggable); ok {
				attrs = append(attrs, m.LogAttrs()...)
			}

			resp, err := next(ctx, req)
			attrs = append(attrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))

			if err != nil {
				level := slog.LevelError
				var connectErr *connect.Error
				if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal {
					level = slog.LevelWarn
					attrs = append(attrs, slog.String("code", connectErr.Code().String()), slog.String("error", connectErr.Message()))
				} else {
					attrs = append(attrs, slog.Any("error", err))
				}
				slog.LogAttrs(ctx, level, "RPC error", attrs...)
				return resp, err
			}

			if resp != nil {
				if m, ok := resp.Any().(loggable); ok {
					attrs = append(attrs, m.LogAttrs()...)
				}
			}
			slog.LogAttrs(ctx, slog.LevelInfo, "RPC ok", attrs...)
			return resp, err
		}
	}
}
