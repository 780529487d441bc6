// Package password hashes secrets with Argon2id and checks passwords against
// the registration policy.
//
// # Output format
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Argon2.NeedsUpgrade] reports hashes made with weaker parameters so the
// caller can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or look up hashes. Callers persist the returned strings.
//   - Import any other boardauth package.
//   - Log secrets or hash parameters.
package password
