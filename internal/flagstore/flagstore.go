// Package flagstore is the two-lifetime key/value layer shared by the
// activation controller, the benchmark harness and the session preferences.
package flagstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Scope selects which lifetime a key lives in.
type Scope int

const (
	// Session keys live for the process. They survive session reloads but not a restart.
	Session Scope = iota
	// Durable keys are written to disk and survive restarts.
	Durable
)

func (s Scope) String() string {
	switch s {
	case Session:
		return "session"
	case Durable:
		return "durable"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

const (
	KeyCOIReloaded        = "coiReloaded"
	KeyCOIPending         = "coiPending"
	KeyCOIStart           = "coiStart"
	KeySpeedBaseline      = "speedBaseline"
	KeyLexicalWeight      = "lexicalWeight"
	KeyHelperRegistration = "helperRegistration"
)

// KV is a single-lifetime string store.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Store routes reads and writes to the session or durable KV. Writes are
// last-writer-wins.
type Store struct {
	session KV
	durable KV
}

func New(session, durable KV) *Store {
	if session == nil {
		session = NewMemory()
	}
	if durable == nil {
		durable = NewMemory()
	}
	return &Store{session: session, durable: durable}
}

func (s *Store) kv(scope Scope) KV {
	if scope == Durable {
		return s.durable
	}
	return s.session
}

// Get returns the stored value. Backend errors read as a missing key.
func (s *Store) Get(scope Scope, key string) (string, bool) {
	value, ok, err := s.kv(scope).Get(key)
	if err != nil {
		return "", false
	}
	return value, ok
}

func (s *Store) Set(scope Scope, key, value string) error {
	if err := s.kv(scope).Set(key, value); err != nil {
		return fmt.Errorf("set %s flag %q: %w", scope, key, err)
	}
	return nil
}

func (s *Store) Remove(scope Scope, key string) error {
	if err := s.kv(scope).Delete(key); err != nil {
		return fmt.Errorf("remove %s flag %q: %w", scope, key, err)
	}
	return nil
}

// Has reports whether the key holds a non-empty value.
func (s *Store) Has(scope Scope, key string) bool {
	value, ok := s.Get(scope, key)
	return ok && value != ""
}

// SpeedBaseline is the last unthreaded benchmark run kept for comparison.
type SpeedBaseline struct {
	Count     int     `json:"count"`
	HardMode  bool    `json:"hardMode"`
	P99Ms     float64 `json:"p99"`
	Timestamp int64   `json:"timestamp"`
}

// Baseline returns the stored speed baseline. ok is false when none is stored;
// a stored value that fails to parse returns an error.
func (s *Store) Baseline() (SpeedBaseline, bool, error) {
	raw, ok := s.Get(Durable, KeySpeedBaseline)
	if !ok || strings.TrimSpace(raw) == "" {
		return SpeedBaseline{}, false, nil
	}
	var baseline SpeedBaseline
	if err := json.Unmarshal([]byte(raw), &baseline); err != nil {
		return SpeedBaseline{}, false, fmt.Errorf("parse speed baseline: %w", err)
	}
	return baseline, true, nil
}

// SaveBaseline overwrites the stored speed baseline.
func (s *Store) SaveBaseline(baseline SpeedBaseline) error {
	data, err := json.Marshal(baseline)
	if err != nil {
		return err
	}
	return s.Set(Durable, KeySpeedBaseline, string(data))
}

// LexicalWeight returns the saved lexical weight preference.
func (s *Store) LexicalWeight() (float64, bool) {
	raw, ok := s.Get(Durable, KeyLexicalWeight)
	if !ok {
		return 0, false
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || weight < 0 || weight > 1 {
		return 0, false
	}
	return weight, true
}

func (s *Store) SaveLexicalWeight(weight float64) error {
	return s.Set(Durable, KeyLexicalWeight, strconv.FormatFloat(weight, 'f', 2, 64))
}

// Memory is an in-process KV.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
