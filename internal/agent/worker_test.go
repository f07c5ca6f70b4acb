package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/goleak"

	"github.com/mealmind/e2eharness/internal/store"
)

func TestWorkerProcessesPending(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	svc, personal := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	userID, agentID, err := svc.GetOrCreate(ctx, "Dana", "dana@example.com", "+15550006666", "I cook at home.")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	it := store.Interaction{
		ID:        "it-1",
		UserID:    userID,
		AgentID:   agentID,
		Input:     "I never eat after 8pm",
		Output:    "ack",
		CreatedAt: time.Now().UTC(),
	}
	if err := personal.InsertInteraction(ctx, it); err != nil {
		t.Fatalf("InsertInteraction: %v", err)
	}

	worker := NewWorker(personal, nil).WithPollInterval(10 * time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, userID, agentID) }()

	deadline := time.After(5 * time.Second)
	for {
		pending, err := personal.UnprocessedInteractions(ctx, userID, 1)
		if err != nil {
			t.Fatalf("UnprocessedInteractions: %v", err)
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never processed the pending interaction")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}

	persona, err := personal.Persona(context.Background(), userID)
	if err != nil {
		t.Fatalf("Persona: %v", err)
	}
	if persona == nil {
		t.Fatal("persona missing after processing")
	}
	factCount := gjson.Get(persona.Data, "fact_count").Int()
	if factCount < 2 {
		t.Errorf("fact_count = %d, want intake fact plus the processed message", factCount)
	}

	stored, err := personal.InteractionsByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("InteractionsByUser: %v", err)
	}
	if len(stored) != 1 || !stored[0].Processed {
		t.Errorf("interaction not marked processed: %+v", stored)
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	_, personal := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	worker := NewWorker(personal, nil).WithPollInterval(10 * time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx, "u-idle", "a-idle") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
