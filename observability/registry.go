package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop":  NoOpObserver{},
		"slog":  NewSlogObserver(nil),
		"trace": NewTraceObserver(nil),
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name.
//
// Pre-registered: "noop", "slog" (slog.Default at event time) and "trace"
// (spans on the global OTel tracer provider). A comma separated list such as
// "slog,trace" resolves to a MultiObserver over each named observer.
func GetObserver(name string) (Observer, error) {
	if strings.Contains(name, ",") {
		parts := strings.Split(name, ",")
		resolved := make([]Observer, 0, len(parts))
		for _, part := range parts {
			obs, err := GetObserver(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, obs)
		}
		return NewMultiObserver(resolved...), nil
	}

	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer in the global registry.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// ListObservers returns the registered observer names in sorted order.
func ListObservers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(observers))
	for name := range observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
