package strategy

import (
	"fmt"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
)

// LoadTOML reads strategies from a TOML document. Each top-level table is a
// strategy symbol and its keys are boolean parameters:
//
//	[buildChangeRequests]
//	ignoreTargetOnlyChanges = true
//	ignoreUntrustedChanges = false
func LoadTOML(data []byte) ([]interfaces.BuildStrategy, error) {
	var doc map[string]map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse strategy configuration")
	}

	symbols := make([]string, 0, len(doc))
	for symbol := range doc {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	strategies := make([]interfaces.BuildStrategy, 0, len(symbols))
	for _, symbol := range symbols {
		params := make(map[string]bool, len(doc[symbol]))
		for key, value := range doc[symbol] {
			b, ok := value.(bool)
			if !ok {
				return nil, goerr.New("strategy parameter must be a boolean",
					goerr.V("symbol", symbol),
					goerr.V("param", key),
					goerr.V("value", fmt.Sprintf("%v", value)),
				)
			}
			params[key] = b
		}

		s, err := Build(symbol, params)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	return strategies, nil
}

// MarshalTOML writes strategies in the format read by LoadTOML
func MarshalTOML(strategies []interfaces.BuildStrategy) ([]byte, error) {
	doc := make(map[string]map[string]bool, len(strategies))
	for _, s := range strategies {
		c, ok := s.(Configurable)
		if !ok {
			return nil, goerr.New("strategy is not configurable", goerr.V("strategy", s.String()))
		}
		if _, dup := doc[c.Symbol()]; dup {
			return nil, goerr.New("duplicated strategy", goerr.V("symbol", c.Symbol()))
		}
		doc[c.Symbol()] = c.Params()
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode strategy configuration")
	}
	return data, nil
}
