package asset

import "fmt"

// maxDecimals bounds token precision; no ERC20 in practice exceeds it.
const maxDecimals = 30

// Asset is token metadata keyed by AssetID. Two assets are the same asset
// when their ids match; the symbol is display only.
type Asset struct {
	id       AssetID
	symbol   string
	name     string
	decimals uint8
}

// NewAsset creates an Asset. It panics on an empty symbol or implausible
// decimals, which only happens on programmer error.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > maxDecimals {
		panic(fmt.Sprintf("asset: %s has %d decimals", symbol, decimals))
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

// NewAssetWithName is NewAsset with a display name.
func NewAssetWithName(id AssetID, symbol, name string, decimals uint8) *Asset {
	a := NewAsset(id, symbol, decimals)
	a.name = name
	return a
}

func (a *Asset) ID() AssetID {
	return a.id
}

func (a *Asset) Symbol() string {
	return a.symbol
}

// Name falls back to the symbol.
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) ChainID() uint64 {
	return a.id.ChainID()
}

// Ref returns the short reference Registry.Resolve accepts ("USDC@8453").
func (a *Asset) Ref() string {
	return fmt.Sprintf("%s@%d", a.symbol, a.id.ChainID())
}

func (a *Asset) String() string {
	return a.symbol
}

// Equals compares by id. Two nil assets are equal.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id.Equals(other.id)
}
