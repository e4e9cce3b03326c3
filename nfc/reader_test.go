package nfc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestReader(manager *MockManager, timeout time.Duration) *Reader {
	return NewReader(manager, ReaderOptions{
		PollTimeout:  timeout,
		PollInterval: 2 * time.Millisecond,
	})
}

func TestOpenSession_Busy(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, 20*time.Millisecond)

	first, err := reader.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if !reader.Busy() {
		t.Error("Expected reader to be busy")
	}

	_, err = reader.OpenSession(context.Background())
	if !IsSessionBusy(err) {
		t.Fatalf("Expected session busy error, got %v", err)
	}

	first.Close()
	if reader.Busy() {
		t.Error("Expected reader to be free after Close")
	}

	second, err := reader.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession after Close failed: %v", err)
	}
	second.Close()
}

func TestOpenSession_TransportUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MockManager)
	}{
		{"open fails", func(m *MockManager) { m.OpenDeviceError = errors.New("usb gone") }},
		{"no devices", func(m *MockManager) { m.DevicesList = nil }},
		{"list fails", func(m *MockManager) { m.ListDevicesError = errors.New("pcscd down") }},
		{"init fails", func(m *MockManager) { m.MockDevice.InitError = errors.New("init") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewMockManager()
			tt.setup(manager)
			reader := newTestReader(manager, 20*time.Millisecond)

			_, err := reader.OpenSession(context.Background())
			if !IsTransportUnavailable(err) {
				t.Fatalf("Expected transport unavailable, got %v", err)
			}
			if reader.Busy() {
				t.Error("Failed open must release the reader")
			}
		})
	}
}

func TestOpenSession_UsesConfiguredDevice(t *testing.T) {
	manager := NewMockManager()
	reader := NewReader(manager, ReaderOptions{Device: "pn532_uart:/dev/ttyUSB0"})

	session, err := reader.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	defer session.Close()

	calls := manager.GetCallLog()
	if len(calls) != 1 || calls[0] != "OpenDevice(pn532_uart:/dev/ttyUSB0)" {
		t.Errorf("Expected direct OpenDevice call, got %v", calls)
	}
}

func TestSession_ReadTag(t *testing.T) {
	manager := NewMockManager()
	manager.MockDevice.SetTags([]Tag{NewMockTextTag("04A1B2C3", "7|e2d729fd")})
	reader := newTestReader(manager, 50*time.Millisecond)

	session, err := reader.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	defer session.Close()

	uid, payload, err := session.ReadTag(context.Background())
	if err != nil {
		t.Fatalf("ReadTag failed: %v", err)
	}
	if uid != "04A1B2C3" {
		t.Errorf("Expected UID 04A1B2C3, got %s", uid)
	}
	if string(payload) != "7|e2d729fd" {
		t.Errorf("Expected payload 7|e2d729fd, got %q", payload)
	}
}

func TestSession_ReadTagAfterSeveralPolls(t *testing.T) {
	manager := NewMockManager()
	tag := NewMockTextTag("04A1B2C3", "1|339dd02d")

	var mu sync.Mutex
	polls := 0
	manager.MockDevice.GetTagsFunc = func() ([]Tag, error) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls < 3 {
			return nil, nil
		}
		return []Tag{tag}, nil
	}
	reader := newTestReader(manager, time.Second)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	_, payload, err := session.ReadTag(context.Background())
	if err != nil {
		t.Fatalf("ReadTag failed: %v", err)
	}
	if string(payload) != "1|339dd02d" {
		t.Errorf("Unexpected payload %q", payload)
	}
}

func TestSession_ReadTagNoTagPresent(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, 20*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	start := time.Now()
	_, _, err := session.ReadTag(context.Background())
	if !IsNoTagPresent(err) {
		t.Fatalf("Expected no tag present, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Polling ran for %v, expected it to stop near the timeout", elapsed)
	}
}

func TestSession_ReadTagSinglePoll(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, 0)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	_, _, err := session.ReadTag(context.Background())
	if !IsNoTagPresent(err) {
		t.Fatalf("Expected no tag present, got %v", err)
	}
	if n := manager.MockDevice.CountCalls("GetTags"); n != 1 {
		t.Errorf("Expected exactly one poll, got %d", n)
	}
}

func TestSession_ReadTagContextCancelled(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, time.Minute)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := session.ReadTag(ctx)
	if !IsNoTagPresent(err) {
		t.Fatalf("Expected no tag present, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected cause to be the context deadline, got %v", err)
	}
}

func TestSession_ReadTagNoPayload(t *testing.T) {
	uri := NewMockTag("04A1B2C3")
	uri.Data = []byte{0xD1, 0x01, 0x04, 'U', 0x04, 'a', '.', 'b'}

	tests := []struct {
		name string
		tag  *MockTag
	}{
		{"blank tag", NewMockTag("04A1B2C3")},
		{"empty text", NewMockTextTag("04A1B2C3", "")},
		{"uri record only", uri},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewMockManager()
			manager.MockDevice.SetTags([]Tag{tt.tag})
			reader := newTestReader(manager, 20*time.Millisecond)

			session, _ := reader.OpenSession(context.Background())
			defer session.Close()

			uid, _, err := session.ReadTag(context.Background())
			if !IsNoPayload(err) {
				t.Fatalf("Expected no payload, got %v", err)
			}
			if uid != "04A1B2C3" {
				t.Errorf("Expected UID with no-payload error, got %q", uid)
			}
		})
	}
}

func TestSession_ReadTagReadFailure(t *testing.T) {
	tag := NewMockTag("04A1B2C3")
	tag.ReadDataError = errors.New("crc error")
	manager := NewMockManager()
	manager.MockDevice.SetTags([]Tag{tag})
	reader := newTestReader(manager, 20*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	_, _, err := session.ReadTag(context.Background())
	if GetErrorCode(err) != ErrCodeReadFailed {
		t.Fatalf("Expected read failed, got %v", err)
	}
}

func TestSession_WriteTag(t *testing.T) {
	tag := NewMockTextTag("04A1B2C3", "7|e2d729fd")
	manager := NewMockManager()
	manager.MockDevice.SetTags([]Tag{tag})
	reader := newTestReader(manager, 20*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	if _, _, err := session.ReadTag(context.Background()); err != nil {
		t.Fatalf("ReadTag failed: %v", err)
	}
	if err := session.WriteTag(context.Background(), []byte("8|09598beb")); err != nil {
		t.Fatalf("WriteTag failed: %v", err)
	}
	if got := tag.Text(); got != "8|09598beb" {
		t.Errorf("Expected tag to hold 8|09598beb, got %q", got)
	}
}

func TestSession_WriteTagWithoutRead(t *testing.T) {
	tag := NewMockTag("04A1B2C3")
	manager := NewMockManager()
	manager.MockDevice.SetTags([]Tag{tag})
	reader := newTestReader(manager, 20*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	uid, err := session.DetectTag(context.Background())
	if err != nil || uid != "04A1B2C3" {
		t.Fatalf("DetectTag returned %q, %v", uid, err)
	}
	if err := session.WriteTag(context.Background(), []byte("1|339dd02d")); err != nil {
		t.Fatalf("WriteTag failed: %v", err)
	}
	if tag.Writes != 1 {
		t.Errorf("Expected 1 write, got %d", tag.Writes)
	}
}

func TestSession_WriteTagRejected(t *testing.T) {
	tag := NewMockTextTag("04A1B2C3", "7|e2d729fd")
	tag.IsReadOnly = true
	manager := NewMockManager()
	manager.MockDevice.SetTags([]Tag{tag})
	reader := newTestReader(manager, 20*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	err := session.WriteTag(context.Background(), []byte("8|09598beb"))
	if !IsWriteRejected(err) {
		t.Fatalf("Expected write rejected, got %v", err)
	}
	if !errors.Is(err, ErrWriteRejected) {
		t.Error("Expected errors.Is match on ErrWriteRejected")
	}
}

func TestSession_WriteTagNoTag(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, 10*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	defer session.Close()

	if err := session.WriteTag(context.Background(), []byte("1|339dd02d")); !IsNoTagPresent(err) {
		t.Fatalf("Expected no tag present, got %v", err)
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	manager := NewMockManager()
	reader := newTestReader(manager, 10*time.Millisecond)

	session, _ := reader.OpenSession(context.Background())
	if err := session.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if n := manager.MockDevice.CountCalls("Close"); n != 1 {
		t.Errorf("Expected device closed once, got %d", n)
	}

	if _, _, err := session.ReadTag(context.Background()); !IsTransportUnavailable(err) {
		t.Errorf("Expected closed session error, got %v", err)
	}
}
