package nfc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
)

// Polling defaults
const (
	DefaultPollTimeout  = 10 * time.Second
	DefaultPollInterval = 250 * time.Millisecond
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Device is the libnfc connection string or PC/SC reader name.
	// Empty selects the first device the manager lists.
	Device string

	// PollTimeout bounds how long a session waits for a tag. Zero means a
	// single poll.
	PollTimeout time.Duration

	// PollInterval is the first delay between polls; later delays back off.
	PollInterval time.Duration
}

// Reader hands out exclusive sessions on one NFC device.
type Reader struct {
	manager Manager
	opts    ReaderOptions
	busy    atomic.Bool
}

// NewReader creates a Reader. The device is opened per session, not here.
func NewReader(manager Manager, opts ReaderOptions) *Reader {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout < 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	return &Reader{manager: manager, opts: opts}
}

// Busy reports whether a session is currently open.
func (r *Reader) Busy() bool {
	return r.busy.Load()
}

// Devices lists the devices the underlying manager can see.
func (r *Reader) Devices() ([]string, error) {
	return r.manager.ListDevices()
}

// OpenSession opens the device and claims it until Session.Close.
//
// It fails with ErrCodeSessionBusy while another session is open and with
// ErrCodeTransportUnavailable when no device can be opened.
func (r *Reader) OpenSession(ctx context.Context) (*Session, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, NewSessionBusyError("OpenSession")
	}

	dev, err := r.openDevice(ctx)
	if err != nil {
		r.busy.Store(false)
		return nil, NewTransportUnavailableError("OpenSession", err)
	}
	return &Session{reader: r, device: dev}, nil
}

func (r *Reader) openDevice(ctx context.Context) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deviceStr := r.opts.Device
	if deviceStr == "" {
		devices, err := r.manager.ListDevices()
		if err != nil {
			return nil, err
		}
		if len(devices) == 0 {
			return nil, fmt.Errorf("no NFC devices found")
		}
		deviceStr = devices[0]
	}

	dev, err := r.manager.OpenDevice(deviceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %q: %w", deviceStr, err)
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to initialize device %q: %w", deviceStr, err)
	}
	log.Printf("Opened NFC device: %s", dev.String())
	return dev, nil
}

func (r *Reader) newBackOff() backoff.BackOff {
	if r.opts.PollTimeout == 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.PollInterval
	b.MaxInterval = 4 * r.opts.PollInterval
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = r.opts.PollTimeout
	return b
}

// Session is one exclusive use of the reader. The first tag detected is
// bound to the session and all later reads and writes go to it.
type Session struct {
	reader *Reader
	device Device

	mu     sync.Mutex
	tag    Tag
	closed bool
}

// DetectTag polls until a tag is in the field and binds it to the session.
// A tag that is already bound is returned without polling.
func (s *Session) DetectTag(ctx context.Context) (string, error) {
	tag, err := s.boundTag(ctx, "DetectTag")
	if err != nil {
		return "", err
	}
	return tag.UID(), nil
}

// ReadTag waits for a tag and returns its UID and the text of its first NDEF
// text record. A tag without a non-empty text record fails with
// ErrCodeNoPayload.
func (s *Session) ReadTag(ctx context.Context) (string, []byte, error) {
	tag, err := s.boundTag(ctx, "ReadTag")
	if err != nil {
		return "", nil, err
	}
	uid := tag.UID()

	msg, err := tag.ReadData()
	if err != nil {
		if IsTagRemovedError(err) {
			return uid, nil, NewTagRemovedError("ReadTag", err)
		}
		return uid, nil, NewReadError("ReadTag", err)
	}

	text, found, err := ParseTextRecord(msg)
	if err != nil {
		return uid, nil, NewNoPayloadError("ReadTag", uid, err)
	}
	if !found || text == "" {
		return uid, nil, NewNoPayloadError("ReadTag", uid, nil)
	}
	return uid, []byte(text), nil
}

// WriteTag replaces the tag's NDEF message with a single text record
// holding payload. Any failure is reported as ErrCodeWriteRejected.
func (s *Session) WriteTag(ctx context.Context, payload []byte) error {
	tag, err := s.boundTag(ctx, "WriteTag")
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewWriteRejectedError("WriteTag", tag.UID(), err)
	}

	msg := EncodeTextRecord(string(payload), DefaultLanguage)
	if err := tag.WriteData(msg); err != nil {
		return NewWriteRejectedError("WriteTag", tag.UID(), err)
	}
	return nil
}

// Close releases the device and the reader. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.tag = nil

	err := s.device.Close()
	s.reader.busy.Store(false)
	return err
}

func (s *Session) boundTag(ctx context.Context, op string) (Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, Errorf(ErrCodeTransportUnavailable, op, "session closed")
	}
	if s.tag != nil {
		return s.tag, nil
	}

	tag, err := s.waitForTag(ctx, op)
	if err != nil {
		return nil, err
	}
	s.tag = tag
	return tag, nil
}

// waitForTag polls the device on a backoff schedule until a tag appears,
// the poll timeout elapses or ctx is done.
func (s *Session) waitForTag(ctx context.Context, op string) (Tag, error) {
	ticker := backoff.NewTicker(backoff.WithContext(s.reader.newBackOff(), ctx))
	defer ticker.Stop()

	var lastErr error
	for range ticker.C {
		tags, err := s.device.GetTags()
		if err != nil {
			lastErr = err
			log.Printf("%s: polling %s: %v", op, s.device.String(), err)
			continue
		}
		if len(tags) > 0 {
			log.Printf("%s: tag %s (%s) detected", op, tags[0].UID(), tags[0].Type())
			return tags[0], nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, NewNoTagPresentError(op, err)
	}
	return nil, NewNoTagPresentError(op, lastErr)
}
