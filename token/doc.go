// Package token signs and verifies the two stateless token kinds used by the
// authentication flows: long-lived session tokens and five-minute MFA
// challenge tokens. Verification is pure computation and safe to run fully in
// parallel.
package token
