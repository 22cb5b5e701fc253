/*
Package assistants stores ADL assistant definitions.

An assistant belongs to exactly one user and carries its raw YAML document,
a visibility flag and a set of free-form tags. Tags live in their own table
and are shared between assistants; the store creates them on first use.

Ownership is enforced in SQL: Update and Delete only touch rows whose
user_id matches the caller and report ErrNotFound otherwise, so a foreign
assistant is indistinguishable from a missing one. Reads are unrestricted;
callers check visibility with Assistant.CanView.
*/
package assistants
