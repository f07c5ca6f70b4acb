package store

import (
	"context"
	"testing"
	"time"
)

func newGroup(t *testing.T) *GroupStore {
	t.Helper()
	s, err := OpenGroup(t.TempDir())
	if err != nil {
		t.Fatalf("OpenGroup: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGroupMembership(t *testing.T) {
	s := newGroup(t)
	ctx := context.Background()

	if err := s.InsertGroup(ctx, GroupRecord{GroupID: "g1", Name: "Dinner Club", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("InsertGroup: %v", err)
	}

	members := []MemberRecord{
		{GroupID: "g1", UserID: "u1", UserName: "Alice", UserEmail: "alice@example.com", Role: "member", JoinedAt: time.Now().UTC()},
		{GroupID: "g1", UserID: "u2", UserName: "Bob", UserEmail: "bob@example.com", Role: "member", JoinedAt: time.Now().UTC()},
		{GroupID: "g1", UserID: "u3", UserName: "Charlie", UserEmail: "charlie@example.com", Role: "member", JoinedAt: time.Now().UTC()},
	}
	for _, m := range members {
		if err := s.InsertMember(ctx, m); err != nil {
			t.Fatalf("InsertMember %s: %v", m.UserID, err)
		}
	}

	got, err := s.MembersByGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("MembersByGroup: %v", err)
	}
	if len(got) != len(members) {
		t.Fatalf("MembersByGroup returned %d members, want %d", len(got), len(members))
	}
	for i, m := range got {
		if m.UserID != members[i].UserID {
			t.Errorf("member %d = %s, want join order %s", i, m.UserID, members[i].UserID)
		}
	}
}

func TestInsertMemberDuplicate(t *testing.T) {
	s := newGroup(t)
	ctx := context.Background()

	rec := MemberRecord{GroupID: "g1", UserID: "u1", UserName: "Alice", UserEmail: "alice@example.com", Role: "member", JoinedAt: time.Now().UTC()}
	if err := s.InsertMember(ctx, rec); err != nil {
		t.Fatalf("InsertMember: %v", err)
	}
	if err := s.InsertMember(ctx, rec); err == nil {
		t.Fatal("duplicate membership should violate the primary key")
	}

	// Same user may join a different group.
	rec.GroupID = "g2"
	if err := s.InsertMember(ctx, rec); err != nil {
		t.Errorf("membership in a second group rejected: %v", err)
	}
}

func TestMembersByGroupEmpty(t *testing.T) {
	s := newGroup(t)

	got, err := s.MembersByGroup(context.Background(), "absent")
	if err != nil {
		t.Fatalf("MembersByGroup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("MembersByGroup = %v, want empty", got)
	}
}
