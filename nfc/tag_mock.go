package nfc

import (
	"fmt"
	"sync"
)

// MockTag is a test implementation of Tag that simulates NFC tag behavior.
//
// MockTag allows testing tag operations without physical tags by providing
// configurable mock responses for read/write operations. Like the hardware
// adapters, ReadData and WriteData manage the connection themselves.
//
// Example:
//
//	tag := NewMockTextTag("04A1B2C3", "7|e2d729fd")
//	data, _ := tag.ReadData()
type MockTag struct {
	// TagUID is the UID returned by UID()
	TagUID string

	// TagType is the type string returned by Type()
	TagType string

	// Data is the NDEF message returned by ReadData() and replaced by WriteData()
	Data []byte

	// ReadDataError, if set, will be returned by ReadData()
	ReadDataError error

	// WriteDataError, if set, will be returned by WriteData()
	WriteDataError error

	// ConnectError, if set, will be returned by Connect()
	ConnectError error

	// IsConnected tracks whether the tag is currently connected
	IsConnected bool

	// IsReadOnly rejects writes when set
	IsReadOnly bool

	// Writes counts successful WriteData calls
	Writes int

	// CallLog tracks all method calls for verification in tests
	CallLog []string

	mu sync.Mutex
}

// NewMockTag creates a new MockTag with default values.
func NewMockTag(uid string) *MockTag {
	return &MockTag{
		TagUID:  uid,
		TagType: "Mock Tag",
		Data:    []byte{},
		CallLog: make([]string, 0),
	}
}

// NewMockTextTag creates a MockTag holding a single NDEF text record.
func NewMockTextTag(uid, text string) *MockTag {
	tag := NewMockTag(uid)
	tag.Data = EncodeTextRecord(text, DefaultLanguage)
	return tag
}

// UID returns the tag's UID.
func (m *MockTag) UID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "UID")
	return m.TagUID
}

// Type returns the tag's type string.
func (m *MockTag) Type() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Type")
	return m.TagType
}

// ReadData simulates reading the NDEF message from the tag.
func (m *MockTag) ReadData() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "ReadData")

	if m.ReadDataError != nil {
		return nil, m.ReadDataError
	}

	// Return a copy to prevent external modification
	dataCopy := make([]byte, len(m.Data))
	copy(dataCopy, m.Data)
	return dataCopy, nil
}

// WriteData simulates writing an NDEF message to the tag.
func (m *MockTag) WriteData(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("WriteData(%d bytes)", len(data)))

	if m.IsReadOnly {
		return fmt.Errorf("tag is read-only")
	}

	if m.WriteDataError != nil {
		return m.WriteDataError
	}

	m.Data = make([]byte, len(data))
	copy(m.Data, data)
	m.Writes++
	return nil
}

// Text decodes the text record currently stored on the tag.
func (m *MockTag) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, _, _ := ParseTextRecord(m.Data)
	return text
}

// Connect simulates connecting to the tag.
func (m *MockTag) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Connect")

	if m.IsConnected {
		return fmt.Errorf("tag already connected")
	}

	if m.ConnectError != nil {
		return m.ConnectError
	}

	m.IsConnected = true
	return nil
}

// Disconnect simulates disconnecting from the tag.
func (m *MockTag) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, "Disconnect")

	if !m.IsConnected {
		return fmt.Errorf("tag not connected")
	}

	m.IsConnected = false
	return nil
}

// GetCallLog returns a copy of the call log for verification.
func (m *MockTag) GetCallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	logCopy := make([]string, len(m.CallLog))
	copy(logCopy, m.CallLog)
	return logCopy
}

// ClearCallLog clears the call log.
func (m *MockTag) ClearCallLog() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = make([]string, 0)
}

// MockPageTag simulates Type 2 tag memory page by page.
type MockPageTag struct {
	TagUID string

	// Pages holds the whole memory map, including header and CC pages
	Pages [][4]byte

	// FailWritePage, if non-zero, makes writes to that page fail
	FailWritePage byte

	mu sync.Mutex
}

var _ PageTag = (*MockPageTag)(nil)

// NewMockPageTag creates a tag with a valid capability container advertising
// dataBytes of user memory.
func NewMockPageTag(uid string, dataBytes int) *MockPageTag {
	userPages := dataBytes / type2PageSize
	pages := make([][4]byte, type2UserStartPage+userPages)
	pages[type2CCPage] = [4]byte{type2CCMagic, 0x10, byte(dataBytes / 8), 0x00}
	return &MockPageTag{TagUID: uid, Pages: pages}
}

func (m *MockPageTag) UID() string       { return m.TagUID }
func (m *MockPageTag) Type() string      { return CardTypeType2 }
func (m *MockPageTag) Connect() error    { return nil }
func (m *MockPageTag) Disconnect() error { return nil }

func (m *MockPageTag) readPage(page byte) ([4]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(page) >= len(m.Pages) {
		return [4]byte{}, fmt.Errorf("page %d out of range", page)
	}
	return m.Pages[page], nil
}

func (m *MockPageTag) writePage(page byte, data [4]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int(page) >= len(m.Pages) {
		return fmt.Errorf("page %d out of range", page)
	}
	if m.FailWritePage != 0 && page == m.FailWritePage {
		return fmt.Errorf("write to page %d failed", page)
	}
	m.Pages[page] = data
	return nil
}

func (m *MockPageTag) ReadPage(page byte) ([4]byte, error) {
	return m.readPage(page)
}

func (m *MockPageTag) WritePage(page byte, data [4]byte) error {
	return m.writePage(page, data)
}

func (m *MockPageTag) ReadData() ([]byte, error) {
	return readType2NDEF(m, 0)
}

func (m *MockPageTag) WriteData(data []byte) error {
	return writeType2NDEF(m, data, 0)
}
