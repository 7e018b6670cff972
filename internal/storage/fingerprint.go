package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/twmb/murmur3"
)

// Fingerprint hashes an ordered list of record names. Artifacts written from
// the same record list carry the same fingerprint.
func Fingerprint(names []string) string {
	h := murmur3.New64()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(names)))
	h.Write(buf[:])
	for _, name := range names {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(name)))
		h.Write(buf[:])
		h.Write([]byte(name))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
