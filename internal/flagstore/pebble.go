package flagstore

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/cockroachdb/pebble"
)

const keyPrefix = "flag:"

// Pebble is a durable KV backed by a pebble database directory.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (creating if needed) the database under dir.
func OpenPebble(dir string) (*Pebble, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create flag dir: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{Logger: &quietLogger{}})
	if err != nil {
		return nil, fmt.Errorf("open flag db %q: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(key string) (string, bool, error) {
	value, closer, err := p.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(value), true, nil
}

func (p *Pebble) Set(key, value string) error {
	return p.db.Set([]byte(keyPrefix+key), []byte(value), pebble.Sync)
}

func (p *Pebble) Delete(key string) error {
	return p.db.Delete([]byte(keyPrefix+key), pebble.Sync)
}

func (p *Pebble) Close() error {
	return p.db.Close()
}

type quietLogger struct{}

func (q *quietLogger) Infof(format string, args ...interface{})  {}
func (q *quietLogger) Errorf(format string, args ...interface{}) { log.Printf(format, args...) }
func (q *quietLogger) Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }
