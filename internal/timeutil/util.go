// Package timeutil keeps all timestamps in UTC unix seconds to avoid time
// zone discrepancies between stores.
package timeutil

import "time"

func TimestampNow() int64 {
	return Now().Unix()
}

func Now() time.Time {
	return time.Now().UTC()
}
