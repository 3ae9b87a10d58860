// Package password provides Argon2id hashing of account passwords and MFA
// backup codes in PHC string format. Verification reads cost parameters from
// the stored hash, so parameter upgrades never invalidate existing records.
package password
