// Package id provides the identifiers that order actions across cooperating
// nodes without synchronized clocks.
//
// # Format
//
// An ID is the triple (ms, node, seq): wall-clock milliseconds of the
// producing node, the node name, and a sequence number inside that
// millisecond. IDs compare by ms numerically, then node byte-wise, then seq
// numerically. Two nodes with distinct names never produce equal IDs.
//
// # Monotonicity
//
// A Timer owns its last millisecond and sequence:
//   - Calls within the same millisecond increment the sequence.
//   - A new millisecond resets the sequence to zero.
//   - If the system clock regresses, it pins to the last seen millisecond and
//     increments the sequence to avoid going backwards.
//
// Usage
//
//	t, err := id.NewTimer("server")
//	if err != nil { /* tab in node name */ }
//	a := t.Next() // {1473564435318 server 0}
//	b := t.Next() // {1473564435318 server 1}
//	id.IsFirstOlder(a, b) // true
//	s := a.String()       // "1473564435318 server 0"
//
// For storage backends AppendKey produces an order-preserving byte key.
package id
