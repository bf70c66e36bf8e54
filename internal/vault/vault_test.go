package vault

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "unit-test-master-key"

func TestSealOpenRoundTrip(t *testing.T) {
	plaintexts := []string{
		"hello",
		"",
		`{"projectUrl":"https://p.example","anonKey":"abc"}`,
		strings.Repeat("x", 4096),
		"snowman ☃ and newline\n",
	}

	for _, p := range plaintexts {
		env, err := Seal(p, testKey)
		if err != nil {
			t.Fatalf("Seal(%q): %v", p, err)
		}

		got, err := Open(env, testKey)
		if err != nil {
			t.Fatalf("Open after Seal(%q): %v", p, err)
		}
		if got != p {
			t.Errorf("round trip mismatch: got %q, want %q", got, p)
		}
	}
}

func TestSealProducesFreshIV(t *testing.T) {
	a, err := Seal("same input", testKey)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Seal("same input", testKey)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two Seal calls produced identical envelopes")
	}
}

func TestEnvelopeFormat(t *testing.T) {
	env, err := Seal("payload", testKey)
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(env, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	if len(parts[0]) != ivSize*2 {
		t.Errorf("iv segment length %d, want %d", len(parts[0]), ivSize*2)
	}
	if len(parts[1]) != tagSize*2 {
		t.Errorf("tag segment length %d, want %d", len(parts[1]), tagSize*2)
	}
}

func flipHexChar(s string) string {
	b := []byte(s)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}

func TestOpenDetectsTamper(t *testing.T) {
	env, err := Seal("sensitive", testKey)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(env, ":")

	tamperedCiphertext := parts[0] + ":" + parts[1] + ":" + flipHexChar(parts[2])
	if _, err := Open(tamperedCiphertext, testKey); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered ciphertext: got %v, want ErrDecrypt", err)
	}

	tamperedTag := parts[0] + ":" + flipHexChar(parts[1]) + ":" + parts[2]
	if _, err := Open(tamperedTag, testKey); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered tag: got %v, want ErrDecrypt", err)
	}
}

func TestOpenWrongKey(t *testing.T) {
	env, err := Seal("sensitive", testKey)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Open(env, "a-different-key"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("wrong key: got %v, want ErrDecrypt", err)
	}
}

func TestOpenMalformedEnvelope(t *testing.T) {
	cases := []string{
		"",
		"only-one-segment",
		"two:segments",
		"a:b:c:d",
		"nothex:00:00",
		"00:00:00", // iv too short
	}

	for _, env := range cases {
		if _, err := Open(env, testKey); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("Open(%q): got %v, want ErrMalformedEnvelope", env, err)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	got := MaskSecret("super-secret-value", 4)
	if got != "********alue" {
		t.Errorf("MaskSecret: got %q", got)
	}

	// Mask width must not leak length.
	long := MaskSecret(strings.Repeat("x", 200)+"tail", 4)
	short := MaskSecret("abcdetail", 4)
	if len(long) != len(short) {
		t.Errorf("mask leaks length: %d vs %d", len(long), len(short))
	}

	if got := MaskSecret("ab", 4); got != "********" {
		t.Errorf("short secret: got %q", got)
	}
	if got := MaskSecret("", 4); got != "********" {
		t.Errorf("empty secret: got %q", got)
	}
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("GenerateKey returned the same key twice")
	}

	env, err := Seal("payload", a)
	if err != nil {
		t.Fatalf("generated key not usable for Seal: %v", err)
	}
	if _, err := Open(env, a); err != nil {
		t.Fatalf("generated key not usable for Open: %v", err)
	}
}
