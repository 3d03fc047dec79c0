package iobuf

import "time"

func timeoutC() <-chan time.Time {
	return time.After(2 * time.Second)
}
