// Package store persists fitted models keyed by (zone, algorithm).
//
// Blobs are gob-encoded envelopes carrying the algorithm identifier and a
// format version next to the estimator payload, so a blob can be decoded
// into the right concrete type. A blob that cannot be decoded is treated as
// a cache miss, never as a fatal error.
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// FormatVersion is written into every envelope.
const FormatVersion = 1

// Key identifies a persisted model.
type Key struct {
	Zone      string
	Algorithm algorithm.Algorithm
}

func (k Key) String() string {
	return k.Zone + "/" + string(k.Algorithm)
}

// Store saves and loads opaque blobs.
type Store interface {
	Save(ctx context.Context, k Key, blob []byte) error
	// Load returns ok=false when nothing is stored under k.
	Load(ctx context.Context, k Key) (blob []byte, ok bool, err error)
}

type envelope struct {
	Algorithm     string
	FormatVersion int
	Payload       []byte
}

// Encode serialises a fitted estimator for a.
func Encode(a algorithm.Algorithm, m model.Regressor) ([]byte, error) {
	payload, err := model.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", a)
	}
	var buf bytes.Buffer
	env := envelope{Algorithm: string(a), FormatVersion: FormatVersion, Payload: payload}
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return nil, errors.Wrapf(err, "encode %s envelope", a)
	}
	return buf.Bytes(), nil
}

// Decode restores an estimator written by Encode. Any mismatch or decoding
// failure is reported as errors.ErrCacheMiss.
func Decode(a algorithm.Algorithm, blob []byte) (model.Regressor, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&env); err != nil {
		return nil, errors.Wrap(errors.ErrCacheMiss, err.Error())
	}
	if env.Algorithm != string(a) {
		return nil, errors.Wrapf(errors.ErrCacheMiss, "blob holds %s, want %s", env.Algorithm, a)
	}
	if env.FormatVersion != FormatVersion {
		return nil, errors.Wrapf(errors.ErrCacheMiss, "format version %d", env.FormatVersion)
	}
	m, err := algorithm.Empty(a)
	if err != nil {
		return nil, err
	}
	if err := model.Unmarshal(env.Payload, m); err != nil {
		return nil, errors.Wrap(errors.ErrCacheMiss, err.Error())
	}
	return m, nil
}

// SaveModel encodes m and stores it under k.
func SaveModel(ctx context.Context, s Store, k Key, m model.Regressor) error {
	blob, err := Encode(k.Algorithm, m)
	if err != nil {
		return err
	}
	return s.Save(ctx, k, blob)
}

// LoadModel returns the model stored under k. Missing and corrupted blobs
// both yield ok=false; corruption is logged.
func LoadModel(ctx context.Context, s Store, k Key) (model.Regressor, bool, error) {
	blob, ok, err := s.Load(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	m, err := Decode(k.Algorithm, blob)
	if errors.Is(err, errors.ErrCacheMiss) {
		log.GetLoggerWithName("store").Warn("Discarding unreadable model", err,
			log.ZoneKey, k.Zone, log.AlgorithmKey, string(k.Algorithm))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	blobs map[Key][]byte
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{blobs: map[Key][]byte{}}
}

func (m *Memory) Save(ctx context.Context, k Key, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[k] = append([]byte(nil), blob...)
	return nil
}

func (m *Memory) Load(ctx context.Context, k Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[k]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Key, 0, len(m.blobs))
	for k := range m.blobs {
		out = append(out, k)
	}
	return out
}
