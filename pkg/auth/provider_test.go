package auth

import (
	"context"
	"os"
	"testing"
)

func TestStaticTokenProvider(t *testing.T) {
	p := StaticTokenProvider("abc123")
	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != "abc123" {
		t.Fatalf("Token() = %q, want abc123", tok)
	}
}

func TestEmulatorProviderReturnsOwnerToken(t *testing.T) {
	tok, err := EmulatorProvider().Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok != EmulatorToken {
		t.Fatalf("Token() = %q, want %q", tok, EmulatorToken)
	}
}

func TestResolveProviderPrefersEmulatorWhenSet(t *testing.T) {
	os.Setenv(EmulatorHostEnv, "localhost:9000")
	defer os.Unsetenv(EmulatorHostEnv)

	p := ResolveProvider(StaticTokenProvider("real-token"))
	tok, _ := p.Token(context.Background())
	if tok != EmulatorToken {
		t.Fatalf("ResolveProvider under emulator env = %q, want %q", tok, EmulatorToken)
	}
}

func TestResolveProviderUsesRealWhenUnset(t *testing.T) {
	os.Unsetenv(EmulatorHostEnv)

	p := ResolveProvider(StaticTokenProvider("real-token"))
	tok, _ := p.Token(context.Background())
	if tok != "real-token" {
		t.Fatalf("ResolveProvider without emulator env = %q, want real-token", tok)
	}
}

func TestEmulatorHost(t *testing.T) {
	os.Unsetenv(EmulatorHostEnv)
	if _, ok := EmulatorHost(); ok {
		t.Fatal("expected EmulatorHost to report unset when env var absent")
	}

	os.Setenv(EmulatorHostEnv, "127.0.0.1:9000")
	defer os.Unsetenv(EmulatorHostEnv)
	host, ok := EmulatorHost()
	if !ok || host != "127.0.0.1:9000" {
		t.Fatalf("EmulatorHost() = (%q, %v), want (127.0.0.1:9000, true)", host, ok)
	}
}
