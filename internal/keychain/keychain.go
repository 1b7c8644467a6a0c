// Package keychain keeps session tokens in the OS credential store.
package keychain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when a key doesn't exist
var ErrNotFound = errors.New("key not found in keychain")

// ServiceName is the keychain service all entries are stored under.
const ServiceName = "teamfaces"

// Keychain provides secure credential storage
type Keychain interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// TokenKey returns the entry name of the session token for a server, so signing in to two
// deployments keeps two sessions.
func TokenKey(serverURL string) string {
	return "token:" + strings.TrimRight(strings.ToLower(serverURL), "/")
}

// MockKeychain is an in-memory keychain for testing
type MockKeychain struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMockKeychain creates a new mock keychain
func NewMockKeychain() *MockKeychain {
	return &MockKeychain{
		store: make(map[string]string),
	}
}

func (m *MockKeychain) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *MockKeychain) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.store[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockKeychain) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// SystemKeychain uses the OS keychain
type SystemKeychain struct{}

// NewSystemKeychain creates a new system keychain
func NewSystemKeychain() *SystemKeychain {
	return &SystemKeychain{}
}

func (s *SystemKeychain) Set(key, value string) error {
	if err := keyring.Set(ServiceName, key, value); err != nil {
		return fmt.Errorf("failed to store in keychain: %w", err)
	}
	return nil
}

func (s *SystemKeychain) Get(key string) (string, error) {
	value, err := keyring.Get(ServiceName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to retrieve from keychain: %w", err)
	}
	return value, nil
}

// Delete removes a value from the system keychain. Missing entries are not an error.
func (s *SystemKeychain) Delete(key string) error {
	err := keyring.Delete(ServiceName, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keychain: %w", err)
	}
	return nil
}
