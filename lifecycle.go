package event

import "sync"

var (
	defaultMu  sync.Mutex
	defaultBus *Bus
)

// Init creates the process-wide bus on first call and returns it. Later calls
// return the same bus and ignore their options.
func Init(opts ...Option) *Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		defaultBus = NewBus(DefaultBusName, opts...)
	}
	return defaultBus
}

// Instance returns the bus created by Init, or ErrBusUninitialized.
func Instance() (*Bus, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBus == nil {
		return nil, ErrBusUninitialized
	}
	return defaultBus, nil
}

// MustInstance is like Instance but panics before Init.
func MustInstance() *Bus {
	b, err := Instance()
	if err != nil {
		panic(err)
	}
	return b
}
