package platform

import (
	"fmt"
	"sort"
	"sync"
)

var (
	dialersMu sync.RWMutex
	dialers   = map[string]Dialer{}
)

// RegisterDialer makes a platform adapter available under name. Adapters
// call this from their init, mirroring how database/sql drivers register.
func RegisterDialer(name string, dial Dialer) {
	dialersMu.Lock()
	defer dialersMu.Unlock()
	if dial == nil {
		panic("platform: RegisterDialer with nil dialer")
	}
	if _, dup := dialers[name]; dup {
		panic("platform: RegisterDialer called twice for adapter " + name)
	}
	dialers[name] = dial
}

// DialerFor returns the adapter registered under name.
func DialerFor(name string) (Dialer, error) {
	dialersMu.RLock()
	defer dialersMu.RUnlock()
	dial, ok := dialers[name]
	if !ok {
		return nil, fmt.Errorf("platform: unknown adapter %q (registered: %v)", name, registeredNames())
	}
	return dial, nil
}

func registeredNames() []string {
	names := make([]string, 0, len(dialers))
	for name := range dialers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
