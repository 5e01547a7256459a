package util

import (
	"strings"
	"testing"
)

func TestDeviceTokenRoundTrip(t *testing.T) {
	token, err := GenerateDeviceToken()
	if err != nil {
		t.Fatalf("GenerateDeviceToken() error = %v", err)
	}
	if !strings.HasPrefix(token, DeviceTokenPrefix+"_") {
		t.Errorf("token %q lacks prefix", token)
	}

	hash := HashDeviceToken(token)
	if hash == token {
		t.Fatal("hash must differ from token")
	}
	if !VerifyDeviceToken(token, hash) {
		t.Error("token should verify against its own hash")
	}

	other, _ := GenerateDeviceToken()
	if VerifyDeviceToken(other, hash) {
		t.Error("a different token must not verify")
	}
	if VerifyDeviceToken("", hash) || VerifyDeviceToken(token, "") {
		t.Error("empty inputs must not verify")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !VerifyPassword("correct horse", hash) {
		t.Error("password should verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password must not verify")
	}
}

func TestParseObjectID(t *testing.T) {
	if _, err := ParseObjectID("not-an-id"); err == nil {
		t.Error("expected error for invalid id")
	}
	if _, err := ParseObjectID(" 64b7f0c2a1b2c3d4e5f60718 "); err != nil {
		t.Error("surrounding whitespace should be ignored")
	}
}

func TestNormalizers(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
	if got := CleanName("  Boiler   room\t2 "); got != "Boiler room 2" {
		t.Errorf("CleanName() = %q", got)
	}
	if CleanNamePtr(nil) != nil {
		t.Error("CleanNamePtr(nil) should be nil")
	}
}
