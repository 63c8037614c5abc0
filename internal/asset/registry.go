package asset

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Registry is a thread-safe registry of known assets.
type Registry struct {
	byID     map[AssetID]*Asset
	bySymbol map[string][]*Asset // symbol -> assets (can have multiple on different chains)
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string][]*Asset),
	}
}

// Register adds an asset to the registry.
// Panics if an asset with the same ID is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.byID[id]; exists {
		panic(fmt.Sprintf("asset: %s already registered", id))
	}

	r.byID[id] = a
	r.bySymbol[a.Symbol()] = append(r.bySymbol[a.Symbol()], a)
}

// Get retrieves an asset by its ID.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	return a, ok
}

// GetBySymbolAndChain retrieves an asset by symbol and chain ID.
func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	assets := r.bySymbol[symbol]
	for _, a := range assets {
		if a.ChainID() == chainID {
			return a, true
		}
	}
	return nil, false
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Has returns true if an asset with the given ID is registered.
func (r *Registry) Has(id AssetID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Resolve finds an asset from a user-facing reference. Accepted forms are an
// asset id ("chain:8453/0x...", "8453:0x...") or a symbol with a chain suffix
// ("USDC@8453"). A bare symbol resolves only when it is unique.
func (r *Registry) Resolve(ref string) (*Asset, error) {
	ref = strings.TrimSpace(ref)

	if sym, chain, ok := strings.Cut(ref, "@"); ok {
		chainID, err := strconv.ParseUint(chain, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("asset: invalid chain in %q: %w", ref, err)
		}
		if a, found := r.GetBySymbolAndChain(strings.ToUpper(sym), chainID); found {
			return a, nil
		}
		return nil, fmt.Errorf("asset: %s not registered on chain %d", sym, chainID)
	}

	if id, err := ParseAssetID(ref); err == nil {
		if a, found := r.Get(id); found {
			return a, nil
		}
		return nil, fmt.Errorf("asset: %s not found in registry", id)
	}

	r.mu.RLock()
	matches := r.bySymbol[strings.ToUpper(ref)]
	r.mu.RUnlock()

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("asset: unknown asset %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("asset: %q is ambiguous across %d chains, use SYMBOL@CHAIN", ref, len(matches))
	}
}
