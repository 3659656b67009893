// Package password hashes and verifies user passwords.
//
// New digests are argon2id in PHC string form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Digests imported from the previous bcrypt-based system ($2a$, $2b$, $2y$)
// still verify, and [Hasher.NeedsUpgrade] flags them so the engine can rehash
// on the next successful login. Hash work is CPU-bound; [Config.MaxConcurrent]
// caps how many computations run at once.
//
// Password policy (minimum length) is enforced by the Engine, not here.
package password
