package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretManager struct {
	accessFn func(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls    int
}

func (f *fakeSecretManager) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls++
	return f.accessFn(ctx, req)
}

func (f *fakeSecretManager) Close() error { return nil }

func payload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolveRemoteAndCache(t *testing.T) {
	fake := &fakeSecretManager{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/furever-dev/secrets/smtp-password/versions/latest" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payload("hunter2"), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(fake),
		WithDefaultProject("furever-dev"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://smtp-password")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if value != "hunter2" {
			t.Fatalf("value = %q, want hunter2", value)
		}
	}
	if fake.calls != 1 {
		t.Fatalf("expected one remote call, got %d", fake.calls)
	}
}

func TestResolveProjectQualifiedReference(t *testing.T) {
	fake := &fakeSecretManager{
		accessFn: func(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			if req.Name != "projects/other-proj/secrets/api-key/versions/3" {
				t.Fatalf("unexpected resource name %q", req.Name)
			}
			return payload("k3y"), nil
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(fake),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://projects/other-proj/secrets/api-key?version=3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "k3y" {
		t.Fatalf("value = %q, want k3y", value)
	}
}

func TestResolveFallbackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	contents := "# local overrides\nsecret://smtp-password=local-pass\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	fake := &fakeSecretManager{
		accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return nil, status.Error(codes.PermissionDenied, "denied")
		},
	}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(fake),
		WithDefaultProject("furever-dev"),
		WithFallbackFile(path),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "sm://smtp-password")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "local-pass" {
		t.Fatalf("value = %q, want local-pass", value)
	}
}

func TestResolveRejectsBadScheme(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&fakeSecretManager{accessFn: func(context.Context, *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return payload("x"), nil
		}}),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	if _, err := fetcher.Resolve(context.Background(), "vault://thing"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
