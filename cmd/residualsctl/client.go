package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"connectrpc.com/connect"
	"github.com/bytedance/sonic"

	"github.com/mmynk/residuals/pkg/api"
)

// bearer attaches the operator token to every call.
func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func (o *globalOptions) syncClient() *api.SyncServiceClient {
	return api.NewSyncServiceClient(http.DefaultClient, o.server, connect.WithInterceptors(bearer(o.token)))
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
