package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/lemmafind/core"
)

// Key prefixes for different data types
const (
	lemmaRecordPrefix = "lemrec"
	lemmaOrderPrefix  = "lemord"
	lemmaSeq          = "lemseq"
	indexMetadataKey  = "idxmeta"
)

// makeLemmaKey generates a key for a lemma record.
// Format: prefix:id
func makeLemmaKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", lemmaRecordPrefix, id))
}

// makeLemmaOrderKey generates a key for the insertion-order index.
// Format: prefix:seq
func makeLemmaOrderKey(seq uint64) []byte {
	prefixBytes := []byte(lemmaOrderPrefix + ":")
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// lemmaOrderScanPrefix is the iteration prefix of the insertion-order index.
func lemmaOrderScanPrefix() []byte {
	return []byte(lemmaOrderPrefix + ":")
}
