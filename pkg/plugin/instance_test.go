package plugin

import (
	"context"
	"testing"

	"sentryproc/pkg/sandbox"
	"sentryproc/pkg/state"
)

// noopModule is the minimal valid WebAssembly binary exporting a no-op
// "_start" function: it writes no decision, so running it is equivalent to
// the blank-slate plugin in the end-to-end scenarios.
var noopModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic + version
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section: () -> ()
	0x03, 0x02, 0x01, 0x00, // function section: one function, type 0
	0x07, 0x0a, 0x01, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74, 0x00, 0x00, // export "_start"
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b, // code section: empty body
}

type noFakeBackend struct{}

func (noFakeBackend) Get(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (noFakeBackend) Set(ctx context.Context, key, value string) error         { return nil }
func (noFakeBackend) Del(ctx context.Context, keys ...string) (int64, error)   { return 0, nil }
func (noFakeBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, nil
}
func (noFakeBackend) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return 0, nil
}
func (noFakeBackend) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return 0, nil
}
func (noFakeBackend) SMembers(ctx context.Context, key string) ([]string, error) { return nil, nil }
func (noFakeBackend) Expire(ctx context.Context, key string, seconds int64) error { return nil }
func (noFakeBackend) ExpireAt(ctx context.Context, key string, unixSeconds int64) error {
	return nil
}
func (noFakeBackend) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return nil, nil
}

func TestLoad_InvalidBytes(t *testing.T) {
	ctx := context.Background()
	loader, err := NewLoader(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	defer loader.Close(ctx)

	_, err = loader.Load(ctx, "bad", []byte("not wasm"), nil, sandbox.Permissions{})
	if err == nil {
		t.Fatal("expected a load error for invalid module bytes")
	}
	if _, ok := err.(*LoadError); !ok {
		t.Fatalf("expected *LoadError, got %T", err)
	}
}

func TestRun_BlankSlatePlugin_YieldsIgnorance(t *testing.T) {
	ctx := context.Background()
	loader, err := NewLoader(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	defer loader.Close(ctx)

	desc, err := loader.Load(ctx, "blank", noopModule, sandbox.GuestConfig{}, sandbox.Permissions{})
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	defer desc.Close(ctx)

	sc := state.New(noFakeBackend{}, nil)
	inst := Instantiate(desc, &sandbox.RequestInfo{Method: "GET", URI: "/"}, sandbox.NewContextBag(), sc, nil)

	d, tags, err := inst.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Unknown() != 1 || d.Accept() != 0 || d.Restrict() != 0 {
		t.Fatalf("expected ignorance decision, got %+v", d)
	}
	if len(tags) != 0 {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	loader, err := NewLoader(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer loader.Close(ctx)

	d1, err := loader.Load(ctx, "same", noopModule, sandbox.GuestConfig{}, sandbox.Permissions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d1.Close(ctx)
	d2, err := loader.Load(ctx, "same", noopModule, sandbox.GuestConfig{}, sandbox.Permissions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer d2.Close(ctx)

	if d1.ReferenceName != d2.ReferenceName {
		t.Fatalf("expected equivalent descriptors from the same bytes")
	}
}
