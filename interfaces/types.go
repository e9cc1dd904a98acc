package interfaces

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Address represents the 20-byte identity of a principal (creator, owner or caller).
type Address [20]byte

// NewAddressFromBytes creates an address from a 20-byte slice.
func NewAddressFromBytes(addr []byte) (Address, error) {
	if len(addr) != 20 {
		return Address{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res Address
	copy(res[:], addr)
	return res, nil
}

// NewAddressFromHex parses a 40-character hex address, with or without the 0x prefix.
func NewAddressFromHex(addr string) (Address, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(clean) != 40 {
		return Address{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAddressFromBytes(addrBytes)
}

// AddressFromCommon converts a go-ethereum address.
func AddressFromCommon(addr common.Address) Address {
	return Address(addr)
}

// String returns the lowercase hex representation without prefix.
func (addr Address) String() string {
	return hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr Address) Bytes() []byte {
	return addr[:]
}

// Equal compares two addresses for equality.
func (addr Address) Equal(other Address) bool {
	return addr == other
}

// IsZero reports whether the address is all zeroes.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// Common returns the go-ethereum representation of the address.
func (addr Address) Common() common.Address {
	return common.Address(addr)
}

func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

func (addr *Address) UnmarshalText(text []byte) error {
	parsed, err := NewAddressFromHex(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// SortAddresses sorts addresses in ascending byte order in place.
func SortAddresses(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return strings.Compare(addrs[i].String(), addrs[j].String()) < 0
	})
}

// MaxCollectionIDLength bounds the caller-chosen identifier.
const MaxCollectionIDLength = 256

// CollectionID is the opaque, caller-chosen identifier naming a collection.
// It holds arbitrary bytes; the storage key is its hex encoding.
type CollectionID string

// NewCollectionID validates an identifier.
func NewCollectionID(raw string) (CollectionID, error) {
	id := CollectionID(raw)
	return id, id.Validate()
}

// Validate checks the identifier is non-empty and bounded.
func (id CollectionID) Validate() error {
	if len(id) == 0 {
		return fmt.Errorf("%w: empty identifier", ErrInvalidCollectionID)
	}
	if len(id) > MaxCollectionIDLength {
		return fmt.Errorf("%w: identifier longer than %d bytes", ErrInvalidCollectionID, MaxCollectionIDLength)
	}
	return nil
}

// Key returns the storage key for the identifier.
func (id CollectionID) Key() string {
	return hex.EncodeToString([]byte(id))
}

// CollectionIDFromKey reverses Key.
func CollectionIDFromKey(key string) (CollectionID, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCollectionID, err)
	}
	return CollectionID(raw), nil
}

// String returns the identifier as a string.
func (id CollectionID) String() string {
	return string(id)
}

// TokenIdentifier is the resource handle assigned by the issuer, e.g. "CATS-a1b2c3".
type TokenIdentifier string

// String returns the token identifier as a string.
func (t TokenIdentifier) String() string {
	return string(t)
}

// IsEmpty reports whether no handle is set.
func (t TokenIdentifier) IsEmpty() bool {
	return t == ""
}

// Role is a capability granted on a token identifier.
type Role string

const (
	RoleNFTCreate      Role = "ESDTRoleNFTCreate"
	RoleNFTBurn        Role = "ESDTRoleNFTBurn"
	RoleNFTUpdateAttrs Role = "ESDTRoleNFTUpdateAttributes"
	RoleNFTAddURI      Role = "ESDTRoleNFTAddURI"
	RoleTransfer       Role = "ESDTTransferRole"
)

// RoleSet is an ordered set of roles.
type RoleSet []Role

// CollectionOwnerRoles are the roles granted to the collection owner during provisioning.
var CollectionOwnerRoles = RoleSet{RoleNFTCreate, RoleNFTBurn}

// Contains reports whether the set holds role.
func (rs RoleSet) Contains(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the role names.
func (rs RoleSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// TokenProperties are the property flags requested when issuing a collection.
type TokenProperties struct {
	CanFreeze             bool `json:"can_freeze"`
	CanWipe               bool `json:"can_wipe"`
	CanPause              bool `json:"can_pause"`
	CanTransferCreateRole bool `json:"can_transfer_create_role"`
	CanChangeOwner        bool `json:"can_change_owner"`
	CanUpgrade            bool `json:"can_upgrade"`
	CanAddSpecialRoles    bool `json:"can_add_special_roles"`
}

// DefaultTokenProperties enables every property.
func DefaultTokenProperties() TokenProperties {
	return TokenProperties{
		CanFreeze:             true,
		CanWipe:               true,
		CanPause:              true,
		CanTransferCreateRole: true,
		CanChangeOwner:        true,
		CanUpgrade:            true,
		CanAddSpecialRoles:    true,
	}
}

// Flags packs the properties into a bitfield, in declaration order.
func (p TokenProperties) Flags() uint8 {
	var flags uint8
	for i, set := range []bool{p.CanFreeze, p.CanWipe, p.CanPause, p.CanTransferCreateRole, p.CanChangeOwner, p.CanUpgrade, p.CanAddSpecialRoles} {
		if set {
			flags |= 1 << i
		}
	}
	return flags
}

// Amount is a non-negative payment amount in the smallest currency unit.
// The zero value is a zero amount.
type Amount struct {
	v *big.Int
}

// NewAmount wraps a big.Int, copying it.
func NewAmount(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(v)}
}

// NewAmountFromUint64 creates an amount from a uint64.
func NewAmountFromUint64(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// ParseAmount parses a base-10 amount.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	return Amount{v: v}, nil
}

// Int returns a copy of the amount as a big.Int.
func (a Amount) Int() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int {
	if a.v == nil {
		return 0
	}
	return a.v.Sign()
}

// String returns the base-10 representation.
func (a Amount) String() string {
	if a.v == nil {
		return "0"
	}
	return a.v.String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept bare JSON numbers as well.
		s = string(data)
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
