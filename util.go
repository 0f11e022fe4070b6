package deepstream

import (
	"crypto/rand"

	"github.com/keybase/saltpack/encoding/basex"
)

func RandNBytes(n uint) (randBytes []byte, err error) {
	randBytes = make([]byte, n)
	_, err = rand.Read(randBytes)
	return
}

// Rand128Base62 returns 128 bits of randomness base62-encoded. Correlation
// ids are generated this way, so an id is never reused within a session.
func Rand128Base62() (encodedRand string, err error) {
	randBuf, err := RandNBytes(16)
	if err != nil {
		return
	}
	encodedRand = basex.Base62StdEncoding.EncodeToString(randBuf)
	return
}
