package proxyconfig

import (
	"sync/atomic"
)

// Store holds the current configuration snapshot. Readers get the snapshot
// that was current when they called Load and keep it for as long as they
// need; a reload never mutates a published snapshot.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore creates a store holding cfg, or an empty configuration when cfg is nil.
func NewStore(cfg *Config) (*Store, error) {
	s := &Store{}
	if cfg == nil {
		cfg = Empty()
	}
	if err := s.Swap(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the current snapshot. It never returns nil.
func (s *Store) Load() *Config {
	if cfg := s.current.Load(); cfg != nil {
		return cfg
	}
	return Empty()
}

// Swap validates cfg and publishes it as the current snapshot. An invalid
// configuration is rejected and the previous snapshot stays current.
func (s *Store) Swap(cfg *Config) error {
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}
