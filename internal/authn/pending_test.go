package authn

import "testing"

func TestPendingStorePeekDoesNotConsume(t *testing.T) {
	store := NewPendingStore()
	token := store.Add(7, PendingModeSession)

	for i := 0; i < 2; i++ {
		userID, ok := store.Peek(token)
		if !ok {
			t.Fatalf("peek %d: expected entry to survive", i+1)
		}
		if userID != 7 {
			t.Fatalf("expected user 7, got %d", userID)
		}
	}
}

func TestPendingStoreConsumeReturnsModeOnce(t *testing.T) {
	store := NewPendingStore()
	token := store.Add(7, PendingModeToken)

	userID, mode, ok := store.Consume(token)
	if !ok {
		t.Fatal("expected consume to succeed")
	}
	if userID != 7 || mode != PendingModeToken {
		t.Fatalf("expected user 7 in token mode, got %d %q", userID, mode)
	}

	if _, _, okAgain := store.Consume(token); okAgain {
		t.Fatal("expected a consumed entry to be gone")
	}
	if _, okPeek := store.Peek(token); okPeek {
		t.Fatal("expected a consumed entry to be invisible to peek")
	}
}

func TestPendingStoreRejectsUnknownToken(t *testing.T) {
	store := NewPendingStore()
	if _, _, ok := store.Consume("no-such-token"); ok {
		t.Fatal("expected unknown token to fail")
	}
}
