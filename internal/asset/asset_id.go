// Package asset provides a type-safe model for crypto and fiat assets.
// The core uses big.Int for exact on-chain representation.
// decimal.Decimal is only used at boundaries (UI, parsing, display).
package asset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID uniquely identifies an asset by chain and contract address.
// For native coins (ETH, MATIC), address is zero.
// This is the TRUE identity - not the symbol.
type AssetID struct {
	chainID uint64
	address common.Address // zero = native coin
}

// NewNativeAssetID creates an AssetID for a native coin (ETH, MATIC, etc).
func NewNativeAssetID(chainID uint64) AssetID {
	return AssetID{
		chainID: chainID,
		address: common.Address{},
	}
}

// NewTokenAssetID creates an AssetID for an ERC20 token.
func NewTokenAssetID(chainID uint64, addr common.Address) AssetID {
	if addr == (common.Address{}) {
		panic("token address cannot be zero - use NewNativeAssetID for native coins")
	}
	return AssetID{
		chainID: chainID,
		address: addr,
	}
}

// NewFiatAssetID creates an AssetID for fiat currencies.
// Uses chainID 0 to represent off-chain/fiat.
func NewFiatAssetID(symbol string) AssetID {
	// Use a deterministic address derived from symbol for uniqueness
	hash := common.BytesToAddress(common.RightPadBytes([]byte(symbol), 20))
	return AssetID{
		chainID: 0, // 0 = fiat/off-chain
		address: hash,
	}
}

// ChainID returns the chain id, 0 for fiat.
func (id AssetID) ChainID() uint64 {
	return id.chainID
}

// Address returns the token contract, zero for native coins.
func (id AssetID) Address() common.Address {
	return id.address
}

// IsNative reports a chain's native coin.
func (id AssetID) IsNative() bool {
	return id.chainID != 0 && id.address == (common.Address{})
}

// IsFiat reports an off-chain currency.
func (id AssetID) IsFiat() bool {
	return id.chainID == 0
}

// String returns a human-readable representation.
func (id AssetID) String() string {
	if id.IsFiat() {
		return fmt.Sprintf("fiat:%s", id.address.Hex()[:10])
	}
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Equals compares two AssetIDs for equality.
func (id AssetID) Equals(other AssetID) bool {
	return id.chainID == other.chainID && id.address == other.address
}

// ParseAssetID parses the forms produced by String ("chain:1/native",
// "chain:8453/0x...") and the short form "8453:0x..." used in config files.
func ParseAssetID(s string) (AssetID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "chain:")

	sep := strings.IndexAny(s, "/:")
	if sep <= 0 || sep == len(s)-1 {
		return AssetID{}, fmt.Errorf("asset: invalid asset id %q", s)
	}

	chainID, err := strconv.ParseUint(s[:sep], 10, 64)
	if err != nil || chainID == 0 {
		return AssetID{}, fmt.Errorf("asset: invalid chain id in %q", s)
	}

	rest := s[sep+1:]
	if strings.EqualFold(rest, "native") {
		return NewNativeAssetID(chainID), nil
	}
	if !common.IsHexAddress(rest) {
		return AssetID{}, fmt.Errorf("asset: invalid token address in %q", s)
	}

	addr := common.HexToAddress(rest)
	if addr == (common.Address{}) {
		return NewNativeAssetID(chainID), nil
	}
	return NewTokenAssetID(chainID, addr), nil
}

// MarshalText implements encoding.TextMarshaler so AssetIDs can key JSON maps.
func (id AssetID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AssetID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
