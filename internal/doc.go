// Package internal generates the random material consumed by the public
// authentication flows: opaque reset/verification tokens and MFA backup
// codes. Nothing here is part of the supported API.
package internal
