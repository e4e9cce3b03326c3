package nfc

import (
	"bytes"
	"strings"
	"testing"
)

// Test encoding and decoding of a single text record
func TestTextRecordEncodeDecode(t *testing.T) {
	text := "7|e2d729fd"

	encoded := EncodeTextRecord(text, "en")
	if len(encoded) == 0 {
		t.Fatal("encoded NDEF message should not be empty")
	}

	decoded, found, err := ParseTextRecord(encoded)
	if err != nil {
		t.Fatalf("failed to decode NDEF text record: %v", err)
	}
	if !found {
		t.Fatal("expected text record to be found")
	}
	if decoded != text {
		t.Errorf("decoded text mismatch: got %q, want %q", decoded, text)
	}
}

func TestEncodeTextRecordBytes(t *testing.T) {
	encoded := EncodeTextRecord("1|ab", "en")
	expected := []byte{0xD1, 0x01, 0x07, 'T', 0x02, 'e', 'n', '1', '|', 'a', 'b'}
	if !bytes.Equal(encoded, expected) {
		t.Errorf("Expected % X, got % X", expected, encoded)
	}
}

// Test encoding with different language codes
func TestTextRecordLanguageCodes(t *testing.T) {
	tests := []struct {
		text     string
		langCode string
	}{
		{"Hello", "en"},
		{"Bonjour", "fr"},
		{"こんにちは", "ja"},
		{"", ""},
		{"Test", ""},
	}

	for _, tt := range tests {
		encoded := EncodeTextRecord(tt.text, tt.langCode)
		decoded, found, err := ParseTextRecord(encoded)
		if err != nil {
			t.Errorf("failed to decode text=%q langCode=%q: %v", tt.text, tt.langCode, err)
			continue
		}
		if !found {
			t.Errorf("text record not found for langCode=%q", tt.langCode)
			continue
		}
		if decoded != tt.text {
			t.Errorf("text mismatch for langCode=%q: got %q, want %q", tt.langCode, decoded, tt.text)
		}
	}
}

// Test short vs long records
func TestTextRecordShortAndLong(t *testing.T) {
	shortEncoded := EncodeTextRecord("Short", "en")
	if shortEncoded[0]&0x10 == 0 {
		t.Error("short record should have SR flag set")
	}

	longText := strings.Repeat("a", 300)
	longEncoded := EncodeTextRecord(longText, "en")
	if longEncoded[0]&0x10 != 0 {
		t.Error("long record should not have SR flag set")
	}

	longDecoded, _, err := ParseTextRecord(longEncoded)
	if err != nil {
		t.Fatalf("failed to decode long record: %v", err)
	}
	if longDecoded != longText {
		t.Errorf("long record mismatch: length got %d, want %d", len(longDecoded), len(longText))
	}
}

func TestParseTextRecordSkipsOtherRecords(t *testing.T) {
	// URI record (MB) followed by a text record (ME)
	msg := []byte{0x91, 0x01, 0x04, 'U', 0x04, 'a', '.', 'b'}
	text := EncodeTextRecord("9|00aa11bb", "en")
	text[0] &^= ndefFlagMB
	msg = append(msg, text...)

	decoded, found, err := ParseTextRecord(msg)
	if err != nil {
		t.Fatalf("ParseTextRecord failed: %v", err)
	}
	if !found || decoded != "9|00aa11bb" {
		t.Errorf("Expected 9|00aa11bb, got %q (found=%v)", decoded, found)
	}
}

func TestParseTextRecordNoText(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"uri only", []byte{0xD1, 0x01, 0x04, 'U', 0x04, 'a', '.', 'b'}},
		{"empty record", []byte{0xD0, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, found, err := ParseTextRecord(tt.msg)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if found {
				t.Error("Expected no text record")
			}
		})
	}
}

func TestParseMalformedNDEF(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"missing type length", []byte{0xD1}},
		{"missing payload length", []byte{0xD1, 0x01}},
		{"payload past end", []byte{0xD1, 0x01, 0x10, 'T', 0x02, 'e', 'n'}},
		{"long length truncated", []byte{0xC1, 0x01, 0x00, 0x00}},
		{"chunked", []byte{0xF1, 0x01, 0x01, 'T', 0x00}},
		{"status byte missing", []byte{0xD1, 0x01, 0x00, 'T'}},
		{"language past end", []byte{0xD1, 0x01, 0x01, 'T', 0x05}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseTextRecord(tt.msg); err == nil {
				t.Error("Expected error for malformed NDEF")
			}
		})
	}
}

func TestParseTextRecordPayloadUTF16(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{"big endian", []byte{0x82, 'e', 'n', 0x00, '7', 0x00, '|', 0x00, 'a'}, "7|a"},
		{"big endian bom", []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, '7'}, "7"},
		{"little endian bom", []byte{0x82, 'e', 'n', 0xFF, 0xFE, '7', 0x00, '|', 0x00}, "7|"},
		{"empty", []byte{0x82, 'e', 'n'}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTextRecordPayload(tt.payload)
			if err != nil {
				t.Fatalf("parseTextRecordPayload failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := parseTextRecordPayload([]byte{0x80, 0x41}); err == nil {
		t.Error("Expected error for odd UTF-16 length")
	}
}

func TestMakeTextRecordPayloadTruncatesLanguage(t *testing.T) {
	payload := makeTextRecordPayload("x", strings.Repeat("l", 80))
	if payload[0] != textStatusLangLen {
		t.Errorf("Expected language length %d, got %d", textStatusLangLen, payload[0])
	}
	if payload[len(payload)-1] != 'x' {
		t.Error("Expected text after truncated language code")
	}
}

func BenchmarkEncodeTextRecord(b *testing.B) {
	for i := 0; i < b.N; i++ {
		EncodeTextRecord("4294967295|e2d729fd", "en")
	}
}
