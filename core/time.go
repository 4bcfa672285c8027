package core

import "time"

// nowMillis returns the current wall-clock time as Unix milliseconds,
// the resolution every timestamp in the data model uses (spec §3).
func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

// nowUnix returns the current wall-clock time as Unix seconds, the
// resolution mempool bookkeeping uses (spec §4.2).
func nowUnix() int64 {
	return time.Now().Unix()
}
