package twofactor

import (
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

func TestSessionStoreTakeConsumes(t *testing.T) {
	store := newSessionStore(time.Minute)
	store.Set("enroll:7", webauthn.SessionData{Challenge: "challenge-a"})

	data, ok := store.Take("enroll:7")
	if !ok {
		t.Fatal("expected stored session data")
	}
	if data.Challenge != "challenge-a" {
		t.Fatalf("expected challenge-a, got %q", data.Challenge)
	}

	if _, okAgain := store.Take("enroll:7"); okAgain {
		t.Fatal("expected a taken entry to be gone")
	}
}

func TestSessionStoreTakeRejectsExpired(t *testing.T) {
	store := newSessionStore(time.Minute)
	store.Set("login:7", webauthn.SessionData{
		Challenge: "challenge-b",
		Expires:   time.Now().Add(-time.Second),
	})

	if _, ok := store.Take("login:7"); ok {
		t.Fatal("expected an expired entry to be rejected")
	}
}

func TestSessionStoreDelete(t *testing.T) {
	store := newSessionStore(time.Minute)
	store.Set("enroll:9", webauthn.SessionData{Challenge: "challenge-c"})
	store.Delete("enroll:9")

	if _, ok := store.Take("enroll:9"); ok {
		t.Fatal("expected a deleted entry to be gone")
	}
}
