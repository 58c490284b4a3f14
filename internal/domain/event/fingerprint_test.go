package event

import (
	"testing"
)

func TestGenerateHashIsStable(t *testing.T) {
	a := GenerateHash("ValueError: boom", "worker.py in step", TypeError, nil)
	b := GenerateHash("ValueError: boom", "worker.py in step", TypeError, nil)
	if a != b {
		t.Fatalf("GenerateHash() not stable: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("GenerateHash() len = %d", len(a))
	}
}

func TestGenerateHashSeparatesTypes(t *testing.T) {
	a := GenerateHash("same", "same", TypeDefault, nil)
	b := GenerateHash("same", "same", TypeError, nil)
	if a == b {
		t.Fatalf("GenerateHash() collides across event types")
	}
}

func TestGenerateHashExplicitFingerprint(t *testing.T) {
	base := GenerateHash("t1", "c1", TypeError, nil)
	custom := GenerateHash("t1", "c1", TypeError, []string{"payments", "timeout"})
	if base == custom {
		t.Fatalf("GenerateHash() ignored explicit fingerprint")
	}

	// The same fingerprint groups regardless of title/culprit.
	other := GenerateHash("t2", "c2", TypeError, []string{"payments", "timeout"})
	if custom != other {
		t.Fatalf("GenerateHash() fingerprint not title-independent: %q vs %q", custom, other)
	}
}

func TestGenerateHashDefaultToken(t *testing.T) {
	plain := GenerateHash("t", "c", TypeError, nil)
	tokened := GenerateHash("t", "c", TypeError, []string{DefaultFingerprintToken})
	if plain != tokened {
		t.Fatalf("GenerateHash() default token != default grouping: %q vs %q", plain, tokened)
	}

	scoped := GenerateHash("t", "c", TypeError, []string{DefaultFingerprintToken, "tenant-7"})
	if scoped == plain {
		t.Fatalf("GenerateHash() token+suffix should split the default group")
	}
}

func TestNormalizedHashUsesDerivedTitle(t *testing.T) {
	n := &Normalized{Type: TypeDefault, Message: "hi"}
	if got, want := n.Hash(), GenerateHash("hi", "", TypeDefault, nil); got != want {
		t.Fatalf("Hash() = %q, want %q", got, want)
	}
}
