package diskstore

import (
	"encoding/binary"

	"github.com/gazay/logux-core/pkg/id"
)

// Keyspace, all under ns/{name}/ and byte-wise sortable:
//   m/added, m/received, m/sent   BE8 counters
//   c/{idkey}                     record, ascending key = oldest first
//   a/{BE8 added}                 idkey

var (
	nsPrefix    = []byte("ns/")
	counterSeg  = []byte("m/")
	createdSeg  = []byte("c/")
	arrivalSeg  = []byte("a/")
	addedName   = "added"
	receiveName = "received"
	sentName    = "sent"
)

type keyspace struct {
	root    []byte
	created []byte
	arrival []byte
}

func newKeyspace(namespace string) keyspace {
	root := make([]byte, 0, len(nsPrefix)+len(namespace)+1)
	root = append(root, nsPrefix...)
	root = append(root, namespace...)
	root = append(root, '/')
	return keyspace{
		root:    root,
		created: join(root, createdSeg),
		arrival: join(root, arrivalSeg),
	}
}

func join(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (k keyspace) counter(name string) []byte {
	out := join(k.root, counterSeg)
	return append(out, name...)
}

func (k keyspace) entry(eid id.ID) []byte {
	out := make([]byte, 0, len(k.created)+len(eid.Node)+17)
	out = append(out, k.created...)
	return id.AppendKey(out, eid)
}

func (k keyspace) arrivalKey(added uint64) []byte {
	out := make([]byte, 0, len(k.arrival)+8)
	out = append(out, k.arrival...)
	return appendBE8(out, added)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func decodeBE8(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
