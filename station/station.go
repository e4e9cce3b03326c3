// Package station drives read-verify and issue-write operations against a
// single NFC reader and keeps the status shown by the debug panel and the
// WebSocket server.
package station

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/nedpals/davi-tagauth/keys"
	"github.com/nedpals/davi-tagauth/nfc"
	"github.com/nedpals/davi-tagauth/tagauth"
)

// Operation names the action a snapshot describes.
type Operation string

const (
	OpRead      Operation = "read"
	OpProvision Operation = "provision"
	OpIssue     Operation = "issue"
	OpRewrite   Operation = "rewrite"
	OpWriteNext Operation = "write-next"
)

var (
	// ErrKeyUnavailable wraps failures of the key provider.
	ErrKeyUnavailable = errors.New("secret key unavailable")

	// ErrNotVerified is matched by NotVerifiedError.
	ErrNotVerified = errors.New("tag not verified")
)

// NotVerifiedError is returned when a write would advance a tag whose
// current record was not verified as authentic.
type NotVerifiedError struct {
	UID     string
	Outcome tagauth.Outcome
	Reason  string
}

func (e *NotVerifiedError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("tag not verified: %s", e.Reason)
	}
	return fmt.Sprintf("tag %s not verified: %s", e.UID, e.Reason)
}

func (e *NotVerifiedError) Is(target error) bool {
	return target == ErrNotVerified
}

// Result is what a read or write left on the tag.
type Result struct {
	UID     string
	Payload string
	Outcome tagauth.Outcome
	Record  tagauth.TagRecord
	// DecodeErr is set when Outcome is Malformed.
	DecodeErr error
}

// lastRead is the tag most recently verified as authentic.
type lastRead struct {
	uid     string
	counter tagauth.Counter
}

// Station serialises tag operations on one reader.
type Station struct {
	Logger *log.Logger

	reader   *nfc.Reader
	protocol *tagauth.Protocol
	keys     keys.Provider
	now      func() time.Time

	mu          sync.Mutex
	snapshot    Snapshot
	last        *lastRead
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New creates a Station.
func New(reader *nfc.Reader, protocol *tagauth.Protocol, provider keys.Provider) *Station {
	s := &Station{
		Logger:      log.New(os.Stderr, "[station] ", log.LstdFlags),
		reader:      reader,
		protocol:    protocol,
		keys:        provider,
		now:         time.Now,
		subscribers: make(map[int]chan Snapshot),
	}
	s.snapshot = Snapshot{State: tagauth.StateIdle, Message: "Idle", Time: s.now()}
	return s
}

// Read presents a tag, reads its payload and verifies it.
//
// A Mismatch or Malformed payload is not an error: it is reported in the
// Result. Transport and key errors are returned as is.
func (s *Station) Read(ctx context.Context) (Result, error) {
	key, err := s.secretKey()
	if err != nil {
		return Result{}, s.failEarly(OpRead, err)
	}

	session, err := s.begin(ctx, OpRead, "Reading...")
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	res, err := s.readAndVerify(ctx, session, key)
	if err != nil {
		s.fail(OpRead, res.UID, err)
		return res, err
	}

	s.mu.Lock()
	if res.Outcome == tagauth.Authentic {
		s.last = &lastRead{uid: res.UID, counter: res.Record.Counter}
	} else {
		s.last = nil
	}
	s.mu.Unlock()

	s.Logger.Printf("Read tag %s: %s (counter %d, mac %s)", res.UID, res.Outcome, res.Record.Counter, res.Record.MAC)
	s.succeed(OpRead, res, "Read complete.")
	return res, nil
}

// Provision writes the first record (counter 1) to the tag presented.
func (s *Station) Provision(ctx context.Context) (Result, error) {
	return s.issue(ctx, OpProvision, 0)
}

// Issue writes the record following previous to the tag presented,
// regardless of what the tag currently holds.
func (s *Station) Issue(ctx context.Context, previous tagauth.Counter) (Result, error) {
	return s.issue(ctx, OpIssue, previous)
}

func (s *Station) issue(ctx context.Context, op Operation, previous tagauth.Counter) (Result, error) {
	key, err := s.secretKey()
	if err != nil {
		return Result{}, s.failEarly(op, err)
	}

	session, err := s.begin(ctx, op, "Writing...")
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	uid, err := session.DetectTag(ctx)
	if err != nil {
		s.fail(op, "", err)
		return Result{}, fmt.Errorf("detecting tag: %w", err)
	}

	res, err := s.write(ctx, session, uid, previous, key)
	if err != nil {
		s.fail(op, uid, err)
		return res, err
	}
	s.remember(res)
	s.succeed(op, res, fmt.Sprintf("Write complete. Counter updated to %d", res.Record.Counter))
	return res, nil
}

// Rewrite reads and verifies the tag, then writes the next record in the
// same session. Only an authentic record is advanced.
func (s *Station) Rewrite(ctx context.Context) (Result, error) {
	key, err := s.secretKey()
	if err != nil {
		return Result{}, s.failEarly(OpRewrite, err)
	}

	session, err := s.begin(ctx, OpRewrite, "Rewriting...")
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	current, err := s.readAndVerify(ctx, session, key)
	if err != nil {
		s.fail(OpRewrite, current.UID, err)
		return current, err
	}
	if current.Outcome != tagauth.Authentic {
		err := &NotVerifiedError{UID: current.UID, Outcome: current.Outcome, Reason: "current record is " + current.Outcome.String()}
		s.forget()
		s.fail(OpRewrite, current.UID, err)
		return current, err
	}

	res, err := s.write(ctx, session, current.UID, current.Record.Counter, key)
	if err != nil {
		s.fail(OpRewrite, current.UID, err)
		return res, err
	}
	s.remember(res)
	s.succeed(OpRewrite, res, fmt.Sprintf("Rewrite complete. Counter updated to %d", res.Record.Counter))
	return res, nil
}

// WriteNext writes the record following the last authentic read. The tag
// presented must be the one that was read. The last read is taken once the
// session is open, so no other operation can change it in between.
func (s *Station) WriteNext(ctx context.Context) (Result, error) {
	key, err := s.secretKey()
	if err != nil {
		return Result{}, s.failEarly(OpWriteNext, err)
	}

	session, err := s.begin(ctx, OpWriteNext, "Writing...")
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		err := &NotVerifiedError{Reason: "no authentic read to continue from"}
		s.fail(OpWriteNext, "", err)
		return Result{}, err
	}

	uid, err := session.DetectTag(ctx)
	if err != nil {
		s.fail(OpWriteNext, "", err)
		return Result{}, fmt.Errorf("detecting tag: %w", err)
	}
	if uid != last.uid {
		err := &NotVerifiedError{UID: uid, Outcome: tagauth.Mismatch, Reason: "last read was tag " + last.uid}
		s.fail(OpWriteNext, uid, err)
		return Result{UID: uid}, err
	}

	res, err := s.write(ctx, session, uid, last.counter, key)
	if err != nil {
		s.fail(OpWriteNext, uid, err)
		return res, err
	}
	s.remember(res)
	s.succeed(OpWriteNext, res, fmt.Sprintf("Write complete. Counter updated to %d", res.Record.Counter))
	return res, nil
}

// Expected returns the record a genuine tag with uid and counter carries.
// It touches no tag and does not change the station's state.
func (s *Station) Expected(uid string, counter tagauth.Counter) (tagauth.TagRecord, error) {
	key, err := s.secretKey()
	if err != nil {
		return tagauth.TagRecord{}, err
	}
	return tagauth.TagRecord{
		Counter: counter,
		MAC:     s.protocol.Compute(tagauth.TagIdentity(uid), counter, key),
	}, nil
}

// MACSize returns the MAC length in bytes of issued records.
func (s *Station) MACSize() int {
	return s.protocol.MACSize()
}

// ReaderBusy reports whether an operation currently holds the reader.
func (s *Station) ReaderBusy() bool {
	return s.reader.Busy()
}

// Devices lists the NFC devices visible to the reader.
func (s *Station) Devices() ([]string, error) {
	return s.reader.Devices()
}

// Encode renders rec in the tag payload format.
func (s *Station) Encode(rec tagauth.TagRecord) string {
	return s.protocol.Encode(rec)
}

func (s *Station) readAndVerify(ctx context.Context, session *nfc.Session, key tagauth.SecretKey) (Result, error) {
	uid, payload, err := session.ReadTag(ctx)
	if err != nil {
		return Result{UID: uid}, fmt.Errorf("reading tag: %w", err)
	}

	v := s.protocol.VerifyRecord(tagauth.TagIdentity(uid), string(payload), key)
	return Result{
		UID:       uid,
		Payload:   string(payload),
		Outcome:   v.Outcome,
		Record:    v.Record,
		DecodeErr: v.Err,
	}, nil
}

func (s *Station) write(ctx context.Context, session *nfc.Session, uid string, previous tagauth.Counter, key tagauth.SecretKey) (Result, error) {
	rec, err := s.protocol.Issue(tagauth.TagIdentity(uid), previous, key)
	if err != nil {
		return Result{UID: uid}, fmt.Errorf("issuing record for tag %s: %w", uid, err)
	}

	payload := s.protocol.Encode(rec)
	if err := session.WriteTag(ctx, []byte(payload)); err != nil {
		return Result{UID: uid}, fmt.Errorf("writing tag: %w", err)
	}

	s.Logger.Printf("Wrote tag %s: counter %d, mac %s", uid, rec.Counter, rec.MAC)
	return Result{
		UID:     uid,
		Payload: payload,
		Outcome: tagauth.Authentic,
		Record:  rec,
	}, nil
}

func (s *Station) secretKey() (tagauth.SecretKey, error) {
	key, err := s.keys.SecretKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyUnavailable, err)
	}
	return key, nil
}

// begin opens a session and moves to InProgress. A busy reader leaves the
// running operation's snapshot alone.
func (s *Station) begin(ctx context.Context, op Operation, message string) (*nfc.Session, error) {
	session, err := s.reader.OpenSession(ctx)
	if err != nil {
		if !nfc.IsSessionBusy(err) {
			s.fail(op, "", err)
		}
		return nil, err
	}

	s.update(Snapshot{
		State:     tagauth.StateInProgress,
		Operation: op,
		Message:   message,
	})
	return session, nil
}

// failEarly records a failure that happened before a session was opened.
// It is ignored while another operation holds the reader.
func (s *Station) failEarly(op Operation, err error) error {
	if s.reader.Busy() {
		return err
	}
	s.fail(op, "", err)
	return err
}

func (s *Station) fail(op Operation, uid string, err error) {
	s.Logger.Printf("%s failed: %v", op, err)
	snap := Snapshot{
		State:     tagauth.StateFailed,
		Operation: op,
		UID:       uid,
		Message:   failureMessage(op),
		Error:     err.Error(),
	}
	var nv *NotVerifiedError
	if errors.As(err, &nv) && nv.UID != "" {
		snap.Outcome = nv.Outcome.String()
	}
	s.update(snap)
}

func (s *Station) succeed(op Operation, res Result, message string) {
	snap := Snapshot{
		State:     tagauth.StateSucceeded,
		Operation: op,
		UID:       res.UID,
		Outcome:   res.Outcome.String(),
		Message:   message,
	}
	if res.Outcome != tagauth.Malformed {
		snap.Counter = res.Record.Counter
		snap.MAC = res.Record.MAC.String()
	}
	if res.DecodeErr != nil {
		snap.Error = res.DecodeErr.Error()
	}
	s.update(snap)
}

func (s *Station) remember(res Result) {
	s.mu.Lock()
	s.last = &lastRead{uid: res.UID, counter: res.Record.Counter}
	s.mu.Unlock()
}

func (s *Station) forget() {
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

func failureMessage(op Operation) string {
	switch op {
	case OpRead:
		return "Failed to read card."
	case OpRewrite:
		return "Failed to rewrite card."
	default:
		return "Failed to write card."
	}
}
