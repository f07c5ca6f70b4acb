package group

import (
	"context"
	"testing"

	"github.com/mealmind/e2eharness/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	groups, err := store.OpenGroup(t.TempDir())
	if err != nil {
		t.Fatalf("OpenGroup: %v", err)
	}
	t.Cleanup(func() { _ = groups.Close() })
	return NewService(groups, nil)
}

func TestCreateGroupAndMembers(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Dinner Club")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if groupID == "" {
		t.Fatal("CreateGroup returned empty id")
	}

	users := []struct{ id, name, email string }{
		{"u1", "Alice", "alice@example.com"},
		{"u2", "Bob", "bob@example.com"},
		{"u3", "Charlie", "charlie@example.com"},
	}
	for _, u := range users {
		added, err := svc.AddMember(ctx, groupID, u.id, u.name, u.email)
		if err != nil {
			t.Fatalf("AddMember(%s): %v", u.name, err)
		}
		if !added {
			t.Errorf("AddMember(%s) = false, want true", u.name)
		}
	}

	members, err := svc.ListMembers(ctx, groupID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != len(users) {
		t.Fatalf("ListMembers returned %d, want %d", len(members), len(users))
	}
	for i, m := range members {
		if m.UserID != users[i].id || m.UserName != users[i].name {
			t.Errorf("member %d = %+v, want %v in join order", i, m, users[i])
		}
	}
}

func TestAddMemberDuplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Dinner Club")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if _, err := svc.AddMember(ctx, groupID, "u1", "Alice", "alice@example.com"); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	added, err := svc.AddMember(ctx, groupID, "u1", "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("duplicate AddMember errored: %v", err)
	}
	if added {
		t.Error("duplicate AddMember = true, want false")
	}

	members, err := svc.ListMembers(ctx, groupID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("duplicate add left %d membership rows", len(members))
	}
}

func TestCreateGroupRequiresName(t *testing.T) {
	svc := newService(t)

	if _, err := svc.CreateGroup(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank group name")
	}
}
