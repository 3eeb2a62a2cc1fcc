package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// passHandler is a grpc.UnaryHandler that returns ("ok", nil).
func passHandler(ctx context.Context, req any) (any, error) {
	return "ok", nil
}

func callWithKey(t *testing.T, interceptor grpc.UnaryServerInterceptor, header, key string) (any, error) {
	t.Helper()
	ctx := context.Background()
	if key != "" {
		ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(header, key))
	}
	return interceptor(ctx, nil, &grpc.UnaryServerInfo{}, passHandler)
}

func TestAPIKeyInterceptor(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		key      string
		sent     string
		wantCode codes.Code
	}{
		{name: "mode none passes through", mode: "none", key: "secret", wantCode: codes.OK},
		{name: "empty key passes through", mode: "apikey", key: "", wantCode: codes.OK},
		{name: "correct key", mode: "apikey", key: "secret", sent: "secret", wantCode: codes.OK},
		{name: "wrong key", mode: "apikey", key: "secret", sent: "nope", wantCode: codes.Unauthenticated},
		{name: "missing metadata", mode: "apikey", key: "secret", wantCode: codes.Unauthenticated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := callWithKey(t, APIKeyInterceptor(tc.mode, "x-api-key", tc.key), "x-api-key", tc.sent)
			if got := status.Code(err); got != tc.wantCode {
				t.Fatalf("code: got %v, want %v (err=%v)", got, tc.wantCode, err)
			}
			if tc.wantCode == codes.OK && res != "ok" {
				t.Errorf("result: got %v, want ok", res)
			}
		})
	}
}

func TestAPIKeyInterceptor_WrongHeader(t *testing.T) {
	i := APIKeyInterceptor("apikey", "x-api-key", "secret")
	_, err := callWithKey(t, i, "authorization", "secret")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code: got %v, want Unauthenticated", status.Code(err))
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestStreamAPIKeyInterceptor(t *testing.T) {
	i := StreamAPIKeyInterceptor("apikey", "x-api-key", "secret")
	called := false
	handler := func(any, grpc.ServerStream) error { called = true; return nil }

	err := i(nil, fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, handler)
	if status.Code(err) != codes.Unauthenticated || called {
		t.Fatalf("no key: got %v (called=%v), want Unauthenticated", err, called)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "secret"))
	if err := i(nil, fakeStream{ctx: ctx}, &grpc.StreamServerInfo{}, handler); err != nil || !called {
		t.Fatalf("with key: got %v (called=%v)", err, called)
	}
}

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name string
		mode string
		key  string
		sent string
		want int
	}{
		{name: "disabled", mode: "none", key: "secret", want: http.StatusNoContent},
		{name: "no key configured", mode: "apikey", want: http.StatusNoContent},
		{name: "correct key", mode: "apikey", key: "secret", sent: "secret", want: http.StatusNoContent},
		{name: "wrong key", mode: "apikey", key: "secret", sent: "nope", want: http.StatusUnauthorized},
		{name: "missing key", mode: "apikey", key: "secret", want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := Middleware(tc.mode, "x-api-key", tc.key)(next)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tc.sent != "" {
				req.Header.Set("X-Api-Key", tc.sent)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && rr.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type: got %q", rr.Header().Get("Content-Type"))
			}
		})
	}
}
