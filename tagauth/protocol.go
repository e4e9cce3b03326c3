package tagauth

// Option configures a Protocol.
type Option func(*protocolOptions)

type protocolOptions struct {
	macSize int
}

// WithMACSize sets the MAC truncation length in bytes.
func WithMACSize(size int) Option {
	return func(o *protocolOptions) {
		o.macSize = size
	}
}

// Protocol verifies tag payloads on read and issues new records on write.
// It holds no mutable state and may be shared between goroutines.
type Protocol struct {
	engine *MacEngine
	codec  *RecordCodec
}

// Verification is the detailed result of VerifyRecord.
type Verification struct {
	Outcome Outcome
	// Record is the decoded payload. Zero when Outcome is Malformed.
	Record TagRecord
	// Err is the decode error when Outcome is Malformed.
	Err error
}

// NewProtocol creates a Protocol. The MAC size defaults to DefaultMACSize.
func NewProtocol(opts ...Option) (*Protocol, error) {
	o := protocolOptions{macSize: DefaultMACSize}
	for _, opt := range opts {
		opt(&o)
	}

	engine, err := NewMacEngine(o.macSize)
	if err != nil {
		return nil, err
	}
	codec, err := NewRecordCodec(o.macSize)
	if err != nil {
		return nil, err
	}
	return &Protocol{engine: engine, codec: codec}, nil
}

// MACSize returns the configured MAC length in bytes.
func (p *Protocol) MACSize() int {
	return p.engine.Size()
}

// Verify decodes payload and checks its MAC against identity and key.
func (p *Protocol) Verify(identity TagIdentity, payload string, key SecretKey) Outcome {
	return p.VerifyRecord(identity, payload, key).Outcome
}

// VerifyRecord is Verify with the decoded record and decode error attached.
// A payload that does not decode is Malformed and no MAC is computed.
func (p *Protocol) VerifyRecord(identity TagIdentity, payload string, key SecretKey) Verification {
	rec, err := p.codec.Decode(payload)
	if err != nil {
		return Verification{Outcome: Malformed, Err: err}
	}

	expected := p.engine.Compute(identity, rec.Counter, key)
	if !p.engine.Equal(expected, rec.MAC) {
		return Verification{Outcome: Mismatch, Record: rec}
	}
	return Verification{Outcome: Authentic, Record: rec}
}

// Issue returns the record for the write following previous. Pass 0 when
// provisioning a tag for the first time.
func (p *Protocol) Issue(identity TagIdentity, previous Counter, key SecretKey) (TagRecord, error) {
	if previous >= MaxCounter {
		return TagRecord{}, ErrCounterOverflow
	}
	next := previous + 1
	return TagRecord{
		Counter: next,
		MAC:     p.engine.Compute(identity, next, key),
	}, nil
}

// Encode renders rec as a tag payload.
func (p *Protocol) Encode(rec TagRecord) string {
	return p.codec.Encode(rec)
}

// Decode parses a tag payload.
func (p *Protocol) Decode(payload string) (TagRecord, error) {
	return p.codec.Decode(payload)
}

// Compute exposes the MAC engine, mainly for diagnostics.
func (p *Protocol) Compute(identity TagIdentity, counter Counter, key SecretKey) AuthTag {
	return p.engine.Compute(identity, counter, key)
}
