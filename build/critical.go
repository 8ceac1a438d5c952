package build

import (
	"fmt"
	"os"
)

// Critical will print a message to os.Stderr unless DEBUG has been set, in
// which case panic will be called instead. It is used for conditions that
// indicate a bug in the miner itself (accounting drift in the buffer pool,
// a state machine transition that should be unreachable) rather than an
// environmental failure, which should instead be routed through the metrics
// accumulator and logged at a lower severity.
func Critical(v ...interface{}) {
	s := fmt.Sprintln(v...)
	os.Stderr.WriteString("Critical: " + s)
	if DEBUG {
		panic(s)
	}
}
