package imgcast

import (
	"math/rand"
	"time"
)

// RandInt returns a pseudo-random integer in [min, max). It backs the
// lossy-channel test harness that exercises loss recovery by dropping
// a random subset of multicast fragments.
func RandInt(min, max int) int {
	randSource := rand.NewSource(time.Now().UnixNano())
	r := rand.New(randSource)
	return r.Intn(max-min) + min
}
