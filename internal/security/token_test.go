package security

import (
	"errors"
	"strings"
	"testing"
)

const testIntakeSecret = "intake-secret-abcdefghijklmnopqrstuvwxyz"

func TestIntakeTokenIssueAndVerify(t *testing.T) {
	issuer := NewIntakeTokenIssuer(testIntakeSecret)
	claims := TokenClaims{OrderReference: "ORD-1", PaypalTransactionID: "PAY-1", ServicePurchased: "Basic"}
	token, err := issuer.Issue(claims)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(token, ".") != 1 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if got != claims {
		t.Fatalf("expected claims %+v, got %+v", claims, got)
	}

	other, err := issuer.Issue(claims)
	if err != nil {
		t.Fatal(err)
	}
	if other == token {
		t.Fatal("expected distinct tokens for the same purchase")
	}

	wrong := NewIntakeTokenIssuer("another-secret-abcdefghijklmnopqrstuvwx")
	if _, err := wrong.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token with wrong secret, got %v", err)
	}
}

func TestIntakeTokenCannotBeRebound(t *testing.T) {
	issuer := NewIntakeTokenIssuer(testIntakeSecret)
	mine, _ := issuer.Issue(TokenClaims{OrderReference: "ORD-1", PaypalTransactionID: "PAY-1"})
	theirs, _ := issuer.Issue(TokenClaims{OrderReference: "ORD-2", PaypalTransactionID: "PAY-2"})

	myBody, _, _ := strings.Cut(mine, ".")
	_, theirSig, _ := strings.Cut(theirs, ".")
	if _, err := issuer.Verify(myBody + "." + theirSig); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected spliced token to be rejected, got %v", err)
	}
}

func TestIntakeTokenVerifyRejectsMalformed(t *testing.T) {
	issuer := NewIntakeTokenIssuer(testIntakeSecret)
	token, _ := issuer.Issue(TokenClaims{OrderReference: "ORD-1"})
	body := strings.SplitN(token, ".", 2)[0]

	for _, bad := range []string{"", "tok_123", body, body + ".", "." + body, token + ".x", body + ".AAAA", issuer.sign("bm90LWpzb24")} {
		if _, err := issuer.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestTokenFingerprintStableAndShort(t *testing.T) {
	a := TokenFingerprint("tok_123")
	if a != TokenFingerprint("tok_123") {
		t.Fatal("fingerprint must be stable")
	}
	if len(a) != 16 || a == TokenFingerprint("tok_124") {
		t.Fatalf("unexpected fingerprint %q", a)
	}
}

func FuzzIntakeTokenVerify(f *testing.F) {
	issuer := NewIntakeTokenIssuer(testIntakeSecret)
	valid, _ := issuer.Issue(TokenClaims{OrderReference: "ORD-1"})
	f.Add(valid)
	f.Add("")
	f.Add("a.b")
	f.Add(strings.Repeat("x", 4096))

	f.Fuzz(func(t *testing.T, raw string) {
		if _, err := issuer.Verify(raw); err == nil && strings.TrimSpace(raw) != valid {
			t.Fatalf("unexpected acceptance of %q", raw)
		}
	})
}
