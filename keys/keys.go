// Package keys supplies the secret key consumed by tagauth.
//
// Providers never log, serialise or transmit the key. tagauth.SecretKey
// redacts itself when formatted, so an accidental log line prints
// "[redacted]".
package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/nedpals/davi-tagauth/tagauth"
)

var (
	// ErrNoKey is returned when a provider has no key configured.
	ErrNoKey = errors.New("no secret key configured")
	// ErrEmptyKey is returned when a configured key source is empty.
	ErrEmptyKey = errors.New("secret key is empty")
)

// Provider returns the key used for MAC computation.
type Provider interface {
	SecretKey() (tagauth.SecretKey, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func() (tagauth.SecretKey, error)

func (f ProviderFunc) SecretKey() (tagauth.SecretKey, error) {
	return f()
}

// Static returns the same key on every call. Intended for tests.
type Static tagauth.SecretKey

func (s Static) SecretKey() (tagauth.SecretKey, error) {
	if len(s) == 0 {
		return nil, ErrEmptyKey
	}
	return cloneKey(tagauth.SecretKey(s)), nil
}

// FileProvider reads the key from a file on every call, so a rotated key
// file is picked up without a restart.
//
// The file holds either hex text (an even number of hex digits, surrounding
// whitespace ignored) or raw key bytes.
type FileProvider struct {
	Path string
}

func (p FileProvider) SecretKey() (tagauth.SecretKey, error) {
	if p.Path == "" {
		return nil, ErrNoKey
	}
	content, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParseKey(content)
}

// EnvProvider reads the key from an environment variable. The value is
// parsed like a key file.
type EnvProvider struct {
	Name string
}

func (p EnvProvider) SecretKey() (tagauth.SecretKey, error) {
	if p.Name == "" {
		return nil, ErrNoKey
	}
	value, ok := os.LookupEnv(p.Name)
	if !ok {
		return nil, fmt.Errorf("%w: $%s not set", ErrNoKey, p.Name)
	}
	return ParseKey([]byte(value))
}

// PromptProvider asks for the key on the terminal the first time it is
// needed and keeps it in memory afterwards.
type PromptProvider struct {
	Prompt string
	// Fd is the terminal file descriptor, stdin when zero.
	Fd int

	mu  sync.Mutex
	key tagauth.SecretKey
}

func (p *PromptProvider) SecretKey() (tagauth.SecretKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return cloneKey(p.key), nil
	}

	fd := p.Fd
	if fd == 0 {
		fd = int(os.Stdin.Fd())
	}
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", ErrNoKey)
	}

	prompt := p.Prompt
	if prompt == "" {
		prompt = "Tag secret key: "
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read key from terminal: %w", err)
	}

	key, err := ParseKey(raw)
	if err != nil {
		return nil, err
	}
	p.key = key
	return cloneKey(key), nil
}

// Chain tries each provider in order and returns the first key found.
// Providers that report ErrNoKey are skipped; any other error stops the
// chain.
type Chain []Provider

func (c Chain) SecretKey() (tagauth.SecretKey, error) {
	for _, p := range c {
		key, err := p.SecretKey()
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, ErrNoKey) {
			return nil, err
		}
	}
	return nil, ErrNoKey
}

// ParseKey decodes key material. Hex text is decoded; anything else is taken
// as raw bytes after trimming surrounding whitespace.
func ParseKey(content []byte) (tagauth.SecretKey, error) {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil, ErrEmptyKey
	}
	if len(trimmed)%2 == 0 {
		if decoded, err := hex.DecodeString(trimmed); err == nil {
			return tagauth.SecretKey(decoded), nil
		}
	}
	return tagauth.SecretKey(trimmed), nil
}

func cloneKey(k tagauth.SecretKey) tagauth.SecretKey {
	out := make(tagauth.SecretKey, len(k))
	copy(out, k)
	return out
}
