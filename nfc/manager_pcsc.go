package nfc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

// pcscManager implements Manager using PC/SC via ebfe/scard
type pcscManager struct {
	ctx   *scard.Context
	ctxMu sync.Mutex
}

// newPCSCManager creates a new PC/SC manager
func newPCSCManager() *pcscManager {
	return &pcscManager{}
}

// context returns a valid PC/SC context, re-establishing it if the daemon
// restarted since the last call.
func (m *pcscManager) context() (*scard.Context, error) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()

	if m.ctx != nil {
		if _, err := m.ctx.ListReaders(); err == nil {
			return m.ctx, nil
		}
		m.ctx.Release()
		m.ctx = nil
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	m.ctx = ctx
	return ctx, nil
}

// OpenDevice binds to a reader. The card itself is connected lazily by
// GetTags so a reader with an empty field can still be opened.
func (m *pcscManager) OpenDevice(deviceStr string) (Device, error) {
	ctx, err := m.context()
	if err != nil {
		return nil, err
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	readers = filterContactlessReaders(readers)

	readerName := deviceStr
	if readerName == "" {
		if len(readers) == 0 {
			return nil, fmt.Errorf("no PC/SC readers found")
		}
		readerName = readers[0]
	} else if !containsString(readers, readerName) {
		return nil, fmt.Errorf("PC/SC reader %q not found", readerName)
	}

	return newPCSCDevice(ctx, readerName), nil
}

// ListDevices lists available PC/SC readers
func (m *pcscManager) ListDevices() ([]string, error) {
	var lastErr error
	for i := 0; i < DeviceEnumRetries; i++ {
		ctx, err := m.context()
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond * 100)
			continue
		}

		readers, err := ctx.ListReaders()
		if err != nil {
			lastErr = err
			time.Sleep(time.Millisecond * 100)
			continue
		}
		return filterContactlessReaders(readers), nil
	}
	return nil, fmt.Errorf("failed to list PC/SC readers after %d retries: %w", DeviceEnumRetries, lastErr)
}

// Release releases the PC/SC context
func (m *pcscManager) Release() error {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()

	if m.ctx != nil {
		err := m.ctx.Release()
		m.ctx = nil
		return err
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// filterContactlessReaders drops SAM slots from the reader list.
func filterContactlessReaders(readers []string) []string {
	var filtered []string
	for _, r := range readers {
		if strings.Contains(strings.ToUpper(r), "SAM") {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}
