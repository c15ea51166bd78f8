package security

import "testing"

func TestGenerateSessionTokenIsUnique(t *testing.T) {
	first, errFirst := GenerateSessionToken()
	if errFirst != nil {
		t.Fatalf("generate session token: %v", errFirst)
	}
	second, errSecond := GenerateSessionToken()
	if errSecond != nil {
		t.Fatalf("generate session token: %v", errSecond)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected distinct session tokens")
	}
}

func TestGenerateOneTimeCodeShape(t *testing.T) {
	code, errCode := GenerateOneTimeCode()
	if errCode != nil {
		t.Fatalf("generate one-time code: %v", errCode)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}
}

func TestCheckPasswordMatchesOnlyOriginal(t *testing.T) {
	hash, errHash := HashPassword("correct horse battery staple")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Fatal("expected hash to match the original password")
	}
	if CheckPassword(hash, "wrong password") {
		t.Fatal("expected hash to reject a different password")
	}
}
