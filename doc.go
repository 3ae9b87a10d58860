// Package authcore implements the credential and identity security core of a
// personal-finance platform: password login with brute-force lockout, TOTP
// multi-factor authentication with single-use backup codes, short-lived signed
// challenge tokens bridging the two login phases, federated-identity account
// linking, and field-level encryption of secrets at rest.
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Service], [Builder], [Config],
// the [Store], [Notifier], [Seeder], and [AuditSink] collaborator interfaces,
// and plain result types. Cryptographic primitives live in the fieldcrypt,
// password, and token sub-packages; random material generation lives under
// internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Own persistence. All account and credential state is read and written
//     through the caller-supplied [Store]; the service holds no locks beyond
//     whatever the store provides.
//   - Return password hashes, MFA secrets, or backup-code hashes from any
//     exported method.
//   - Let audit or notification failures surface as caller-facing errors for
//     an otherwise successful operation.
package authcore
