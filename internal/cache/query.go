package cache

import (
	"strconv"
	"time"
)

// QueryKey identifies a query result by the query file's identity and the
// catalog version it was computed against. Rewriting the file or mutating
// the catalog changes the key.
func QueryKey(path string, modTime time.Time, size int64, version uint64) string {
	return strconv.FormatUint(version, 10) + ":" +
		strconv.FormatInt(modTime.UnixNano(), 10) + ":" +
		strconv.FormatInt(size, 10) + ":" + path
}
