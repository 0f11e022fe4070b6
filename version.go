package deepstream

import (
	"github.com/blang/semver"
)

var CurrentVersion = semver.MustParse("0.3.1")

// ProtocolVersion is the version of the RPC message protocol this client
// speaks; peers on the same major version interoperate.
var ProtocolVersion = semver.MustParse("1.0.0")
