package nfc

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ebfe/scard"
)

// pcscDevice implements Device on top of a single PC/SC reader.
type pcscDevice struct {
	ctx        *scard.Context
	readerName string

	mu   sync.Mutex
	card *scard.Card
}

func newPCSCDevice(ctx *scard.Context, readerName string) *pcscDevice {
	return &pcscDevice{ctx: ctx, readerName: readerName}
}

func (d *pcscDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnectLocked()
}

func (d *pcscDevice) disconnectLocked() error {
	if d.card == nil {
		return nil
	}
	err := d.card.Disconnect(scard.LeaveCard)
	d.card = nil
	return err
}

// InitiatorInit is a no-op: PC/SC readers drive the RF field themselves.
func (d *pcscDevice) InitiatorInit() error {
	return nil
}

func (d *pcscDevice) String() string {
	return d.readerName
}

func (d *pcscDevice) Connection() string {
	return "pcsc:" + d.readerName
}

// GetTags connects to the card in the field, if any, and returns it as a
// Type 2 tag.
func (d *pcscDevice) GetTags() ([]Tag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	present, err := d.cardPresentLocked()
	if err != nil {
		return nil, NewReadError("GetTags", err)
	}
	if !present {
		d.disconnectLocked()
		return nil, nil
	}

	if d.card == nil {
		card, err := d.ctx.Connect(d.readerName, scard.ShareShared, scard.ProtocolAny)
		if err != nil {
			if isCardRemovedPCSCError(err) {
				return nil, nil
			}
			return nil, NewReadError("GetTags", fmt.Errorf("connect to %s: %w", d.readerName, err))
		}
		d.card = card
	}

	uid, err := d.getUIDLocked()
	if err != nil {
		if IsTagRemovedError(err) {
			d.disconnectLocked()
			return nil, nil
		}
		return nil, NewReadError("GetTags", err)
	}
	return []Tag{newPCSCType2Tag(d, uid)}, nil
}

// cardPresentLocked checks the reader state without blocking.
func (d *pcscDevice) cardPresentLocked() (bool, error) {
	states := []scard.ReaderState{
		{Reader: d.readerName, CurrentState: scard.StateUnaware},
	}
	if err := d.ctx.GetStatusChange(states, 0); err != nil {
		// A zero timeout reports "timeout" when nothing changed
		if !strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return false, err
		}
	}
	return states[0].EventState&scard.StatePresent != 0, nil
}

func (d *pcscDevice) getUIDLocked() (string, error) {
	resp, err := d.transmitLocked(GetUIDAPDU())
	if err != nil {
		return "", fmt.Errorf("GET UID failed: %w", err)
	}
	parsed, err := ParseAPDUResponse(resp)
	if err != nil {
		return "", err
	}
	if err := parsed.Error(); err != nil {
		return "", err
	}
	return BytesToHex(parsed.Data), nil
}

// Transceive sends an APDU to the connected card and returns the raw response.
func (d *pcscDevice) Transceive(cmd []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transmitLocked(cmd)
}

func (d *pcscDevice) transmitLocked(cmd []byte) ([]byte, error) {
	if d.card == nil {
		return nil, NewTagRemovedError("Transceive", fmt.Errorf("no card connected"))
	}

	// scard panics on transmit with an invalid protocol
	proto := d.card.ActiveProtocol()
	if proto != scard.ProtocolT0 && proto != scard.ProtocolT1 {
		return nil, NewTagRemovedError("Transceive", fmt.Errorf("invalid card protocol"))
	}

	rx, err := d.card.Transmit(cmd)
	if err != nil {
		if isCardRemovedPCSCError(err) {
			log.Printf("pcscDevice: card removed from %s", d.readerName)
			d.disconnectLocked()
			return nil, NewTagRemovedError("Transceive", err)
		}
		return nil, fmt.Errorf("pcscDevice.Transceive: %w", err)
	}
	return rx, nil
}

// isCardRemovedPCSCError checks if a PC/SC error indicates the card was removed.
func isCardRemovedPCSCError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, scard.ErrRemovedCard) ||
		errors.Is(err, scard.ErrResetCard) ||
		errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrUnpoweredCard) {
		return true
	}

	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "removed") ||
		strings.Contains(errLower, "no smart card") ||
		strings.Contains(errLower, "unpowered")
}
