package imgcast

import (
	"fmt"
	"os"
	"time"
)

// SessionTag returns a human-identifiable tag for a single server or
// client run, used as a log correlation field by the session
// supervisor. Distinct from the protocol's message ids, it never
// crosses the wire.
func SessionTag() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown", err
	}

	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano()), nil
}
