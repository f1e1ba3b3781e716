package diskstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"

	"github.com/gazay/logux-core/pkg/store"
)

// ErrCorruptRecord is returned when a stored record fails its checksum.
var ErrCorruptRecord = errors.New("diskstore: corrupt record")

// Record framing: varint bodyLen | body | crc32c(body). Body is the JSON entry;
// numbers decode as json.Number.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(e store.Entry) ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, binary.MaxVarintLen64+len(body)+4)
	out = binary.AppendUvarint(out, uint64(len(body)))
	out = append(out, body...)
	return binary.BigEndian.AppendUint32(out, crc32.Checksum(body, castagnoli)), nil
}

func decodeRecord(b []byte) (store.Entry, error) {
	n, w := binary.Uvarint(b)
	if w <= 0 || uint64(len(b)-w) < n+4 {
		return store.Entry{}, ErrCorruptRecord
	}
	body := b[w : w+int(n)]
	if binary.BigEndian.Uint32(b[w+int(n):]) != crc32.Checksum(body, castagnoli) {
		return store.Entry{}, ErrCorruptRecord
	}
	var e store.Entry
	if err := store.DecodeJSON(body, &e); err != nil {
		return store.Entry{}, errors.Join(ErrCorruptRecord, err)
	}
	return e, nil
}
