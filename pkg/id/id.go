package id

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID is the (millisecond, node, sequence) triple that totally orders actions.
type ID struct {
	Ms   int64  `json:"ms"`
	Node string `json:"node"`
	Seq  uint64 `json:"seq"`
}

var (
	// ErrInvalidID is returned by Parse for malformed strings.
	ErrInvalidID = errors.New("id: invalid identifier")
	// ErrNodeNotKeyable is returned when a node name cannot be used in a byte key.
	ErrNodeNotKeyable = errors.New("id: node name contains NUL byte")
)

// IsZero reports whether the ID was never assigned.
func (i ID) IsZero() bool { return i.Ms == 0 && i.Node == "" && i.Seq == 0 }

// String returns "<ms> <node> <seq>".
func (i ID) String() string {
	return strconv.FormatInt(i.Ms, 10) + " " + i.Node + " " + strconv.FormatUint(i.Seq, 10)
}

// Compare returns -1, 0, 1 ordering by ms, then node, then seq.
func (i ID) Compare(other ID) int { return Compare(i, other) }

// Compare returns -1 if a is older than b, 1 if newer and 0 if equal.
func Compare(a, b ID) int {
	switch {
	case a.Ms < b.Ms:
		return -1
	case a.Ms > b.Ms:
		return 1
	}
	if c := strings.Compare(a.Node, b.Node); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

// IsFirstOlder reports whether a strictly precedes b.
func IsFirstOlder(a, b ID) bool { return Compare(a, b) < 0 }

// Parse reads the String form. The node may contain spaces.
func Parse(s string) (ID, error) {
	first := strings.IndexByte(s, ' ')
	last := strings.LastIndexByte(s, ' ')
	if first <= 0 || last == first || last == len(s)-1 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	ms, err := strconv.ParseInt(s[:first], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: ms: %v", ErrInvalidID, err)
	}
	seq, err := strconv.ParseUint(s[last+1:], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: seq: %v", ErrInvalidID, err)
	}
	return ID{Ms: ms, Node: s[first+1 : last], Seq: seq}, nil
}

// ValidateKeyable checks that the ID can be encoded with AppendKey.
func ValidateKeyable(i ID) error {
	if strings.IndexByte(i.Node, 0) >= 0 {
		return ErrNodeNotKeyable
	}
	return nil
}

// AppendKey appends an order-preserving encoding of i to dst:
// BE8(ms ^ signbit) | node | 0x00 | BE8(seq). Byte-wise comparison of two keys
// matches Compare for keyable IDs.
func AppendKey(dst []byte, i ID) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i.Ms)^(1<<63))
	dst = append(dst, b[:]...)
	dst = append(dst, i.Node...)
	dst = append(dst, 0)
	binary.BigEndian.PutUint64(b[:], i.Seq)
	return append(dst, b[:]...)
}

// DecodeKey reverses AppendKey.
func DecodeKey(k []byte) (ID, error) {
	if len(k) < 17 || k[len(k)-9] != 0 {
		return ID{}, fmt.Errorf("%w: key length %d", ErrInvalidID, len(k))
	}
	ms := int64(binary.BigEndian.Uint64(k[:8]) ^ (1 << 63))
	node := string(k[8 : len(k)-9])
	seq := binary.BigEndian.Uint64(k[len(k)-8:])
	return ID{Ms: ms, Node: node, Seq: seq}, nil
}
