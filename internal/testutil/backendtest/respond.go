package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
)

type accountCtx struct {
	acc   *account
	token string
}

func withAccount(ctx context.Context, acc *account, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, accountCtx{acc: acc, token: token})
}

func accountFrom(ctx context.Context) (*account, string) {
	v, ok := ctx.Value(ctxKey{}).(accountCtx)
	if !ok {
		return &account{}, ""
	}
	return v.acc, v.token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
