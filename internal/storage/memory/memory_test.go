package memory

import (
	"context"
	"testing"

	"spendwise/internal/core"
	"spendwise/internal/storage"
	"spendwise/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestStore_EmailIsCaseInsensitive(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.CreateUser(ctx, core.User{ID: "u1", Name: "A", Email: "a@example.com"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if err := s.CreateUser(ctx, core.User{ID: "u2", Name: "B", Email: "A@Example.com"}); err != core.ErrEmailTaken {
		t.Errorf("CreateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestStore_SnapshotPayloadIsCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	payload := []byte(`{"a":1}`)
	if err := s.SaveSnapshot(ctx, core.InsightSnapshot{UserID: "u1", Profile: "full", Payload: payload}); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	payload[2] = 'b'

	got, err := s.LatestSnapshot(ctx, "u1", "full")
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if string(got.Payload) != `{"a":1}` {
		t.Errorf("payload = %s, want the bytes passed to SaveSnapshot", got.Payload)
	}
}
