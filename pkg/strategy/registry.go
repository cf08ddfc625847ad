package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
)

// Configurable is a strategy that can be written back as configuration
type Configurable interface {
	interfaces.BuildStrategy
	Symbol() string
	Params() map[string]bool
}

// Descriptor describes a registered strategy
type Descriptor struct {
	Symbol      string
	DisplayName string
	Params      []string
	New         func(params map[string]bool) Configurable
}

var (
	registryMutex sync.RWMutex
	registry      = map[string]*Descriptor{}
)

// Register adds a descriptor. It panics on duplicate symbols.
func Register(d *Descriptor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := registry[d.Symbol]; exists {
		panic(fmt.Sprintf("strategy %q is already registered", d.Symbol))
	}
	registry[d.Symbol] = d
}

// Lookup returns the descriptor registered for symbol
func Lookup(symbol string) (*Descriptor, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	d, ok := registry[symbol]
	return d, ok
}

// Descriptors returns all registered descriptors sorted by symbol
func Descriptors() []*Descriptor {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	result := make([]*Descriptor, 0, len(registry))
	for _, d := range registry {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result
}

// Build creates a strategy from a symbol and its parameters
func Build(symbol string, params map[string]bool) (Configurable, error) {
	d, ok := Lookup(symbol)
	if !ok {
		return nil, goerr.New("unknown strategy symbol", goerr.V("symbol", symbol))
	}

	for key := range params {
		if !d.hasParam(key) {
			return nil, goerr.New("unknown strategy parameter",
				goerr.V("symbol", symbol),
				goerr.V("param", key),
			)
		}
	}

	return d.New(params), nil
}

func (d *Descriptor) hasParam(name string) bool {
	for _, p := range d.Params {
		if p == name {
			return true
		}
	}
	return false
}

func init() {
	Register(&Descriptor{
		Symbol:      ChangeRequestSymbol,
		DisplayName: "Change requests",
		Params:      []string{"ignoreTargetOnlyChanges", "ignoreUntrustedChanges"},
		New: func(params map[string]bool) Configurable {
			return NewChangeRequest(params["ignoreTargetOnlyChanges"], params["ignoreUntrustedChanges"])
		},
	})
}
