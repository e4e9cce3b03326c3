package tagauth

import (
	"errors"
	"strings"
	"testing"
	"testing/quick"
)

func newTestProtocol(t *testing.T, opts ...Option) *Protocol {
	t.Helper()
	p, err := NewProtocol(opts...)
	if err != nil {
		t.Fatalf("NewProtocol: %v", err)
	}
	return p
}

func TestProtocol_ConcreteScenario(t *testing.T) {
	p := newTestProtocol(t)

	tests := []struct {
		payload string
		want    Outcome
	}{
		{"7|e2d729fd", Authentic},
		{"7|E2D729FD", Authentic},
		{"7|ffffffff", Mismatch},
		{"seven|a1b2c3d4", Malformed},
	}

	for _, tt := range tests {
		if got := p.Verify("04A1B2C3", tt.payload, testKey); got != tt.want {
			t.Errorf("Verify(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestProtocol_IssueThenVerify(t *testing.T) {
	p := newTestProtocol(t)

	rec, err := p.Issue("04A1B2C3", 6, testKey)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	payload := p.Encode(rec)
	if payload != "7|e2d729fd" {
		t.Errorf("Expected payload 7|e2d729fd, got %q", payload)
	}
	if got := p.Verify("04A1B2C3", payload, testKey); got != Authentic {
		t.Errorf("Expected Authentic, got %v", got)
	}
}

func TestProtocol_VerificationCorrectness(t *testing.T) {
	p := newTestProtocol(t)

	f := func(identity string, counter uint32, key []byte) bool {
		rec := TagRecord{
			Counter: Counter(counter),
			MAC:     p.Compute(TagIdentity(identity), Counter(counter), key),
		}
		return p.Verify(TagIdentity(identity), p.Encode(rec), key) == Authentic
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestProtocol_TamperedMACIsMismatch(t *testing.T) {
	p := newTestProtocol(t)
	const payload = "7|e2d729fd"
	const hexDigits = "0123456789abcdef"

	macStart := strings.IndexByte(payload, '|') + 1
	for i := macStart; i < len(payload); i++ {
		for _, c := range hexDigits {
			if byte(c) == payload[i] {
				continue
			}
			tampered := payload[:i] + string(c) + payload[i+1:]
			if got := p.Verify("04A1B2C3", tampered, testKey); got != Mismatch {
				t.Errorf("Verify(%q) = %v, want Mismatch", tampered, got)
			}
		}
	}
}

func TestProtocol_TamperedCounterIsMismatch(t *testing.T) {
	p := newTestProtocol(t)

	for d := '0'; d <= '9'; d++ {
		if d == '7' {
			continue
		}
		tampered := string(d) + "|e2d729fd"
		if got := p.Verify("04A1B2C3", tampered, testKey); got != Mismatch {
			t.Errorf("Verify(%q) = %v, want Mismatch", tampered, got)
		}
	}
}

func TestProtocol_WrongIdentityOrKeyIsMismatch(t *testing.T) {
	p := newTestProtocol(t)

	if got := p.Verify("04A1B2C4", "7|e2d729fd", testKey); got != Mismatch {
		t.Errorf("Expected Mismatch for cloned payload on another UID, got %v", got)
	}
	if got := p.Verify("04A1B2C3", "7|e2d729fd", SecretKey("other_key")); got != Mismatch {
		t.Errorf("Expected Mismatch for another key, got %v", got)
	}
}

func TestProtocol_MalformedPayloads(t *testing.T) {
	p := newTestProtocol(t)

	for _, payload := range []string{"", "7", "7e2d729fd", "x|e2d729fd", "7|e2d729", "7|e2d729fd00", "7|e2d729fg", "7|e2d7|29fd"} {
		v := p.VerifyRecord("04A1B2C3", payload, testKey)
		if v.Outcome != Malformed {
			t.Errorf("Verify(%q) = %v, want Malformed", payload, v.Outcome)
		}
		if !IsMalformed(v.Err) {
			t.Errorf("Verify(%q): expected malformed error, got %v", payload, v.Err)
		}
	}
}

func TestProtocol_VerifyRecordCarriesRecord(t *testing.T) {
	p := newTestProtocol(t)

	v := p.VerifyRecord("04A1B2C3", "7|ffffffff", testKey)
	if v.Outcome != Mismatch {
		t.Fatalf("Expected Mismatch, got %v", v.Outcome)
	}
	if v.Record.Counter != 7 || v.Record.MAC.String() != "ffffffff" {
		t.Errorf("Expected decoded record 7|ffffffff, got %d|%s", v.Record.Counter, v.Record.MAC)
	}
	if v.Err != nil {
		t.Errorf("Expected no error on mismatch, got %v", v.Err)
	}
}

func TestProtocol_CounterMonotonicity(t *testing.T) {
	p := newTestProtocol(t)

	f := func(c uint32) bool {
		if Counter(c) == MaxCounter {
			return true
		}
		rec, err := p.Issue("04A1B2C3", Counter(c), testKey)
		return err == nil && rec.Counter == Counter(c)+1
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestProtocol_IssueFirstProvisioning(t *testing.T) {
	p := newTestProtocol(t)

	rec, err := p.Issue("04A1B2C3", 0, testKey)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if rec.Counter != 1 {
		t.Errorf("Expected counter 1 on first issue, got %d", rec.Counter)
	}
	if rec.MAC.String() != "339dd02d" {
		t.Errorf("Expected MAC 339dd02d, got %s", rec.MAC)
	}
}

func TestProtocol_IssueOverflow(t *testing.T) {
	p := newTestProtocol(t)

	if _, err := p.Issue("04A1B2C3", MaxCounter, testKey); !errors.Is(err, ErrCounterOverflow) {
		t.Errorf("Expected ErrCounterOverflow, got %v", err)
	}

	rec, err := p.Issue("04A1B2C3", MaxCounter-1, testKey)
	if err != nil {
		t.Fatalf("Issue(max-1) returned error: %v", err)
	}
	if rec.Counter != MaxCounter {
		t.Errorf("Expected counter %d, got %d", MaxCounter, rec.Counter)
	}
}

func TestProtocol_WithMACSize(t *testing.T) {
	p := newTestProtocol(t, WithMACSize(8))
	if p.MACSize() != 8 {
		t.Fatalf("Expected MAC size 8, got %d", p.MACSize())
	}

	rec, _ := p.Issue("04A1B2C3", 6, testKey)
	payload := p.Encode(rec)
	if payload != "7|e2d729fdbf414d41" {
		t.Errorf("Expected 16 hex character MAC, got %q", payload)
	}
	if got := p.Verify("04A1B2C3", payload, testKey); got != Authentic {
		t.Errorf("Expected Authentic, got %v", got)
	}
	if got := p.Verify("04A1B2C3", "7|e2d729fd", testKey); got != Malformed {
		t.Errorf("Expected a 4-byte MAC to be Malformed under an 8-byte protocol, got %v", got)
	}

	if _, err := NewProtocol(WithMACSize(2)); !errors.Is(err, ErrInvalidMACSize) {
		t.Errorf("Expected ErrInvalidMACSize, got %v", err)
	}
}

func TestOutcomeAndStateStrings(t *testing.T) {
	if Authentic.String() != "authentic" || Mismatch.String() != "mismatch" || Malformed.String() != "malformed" {
		t.Error("unexpected Outcome strings")
	}
	if StateIdle.String() != "idle" || StateInProgress.String() != "in-progress" {
		t.Error("unexpected State strings")
	}
}
