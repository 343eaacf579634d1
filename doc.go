// Package dumpdir manages on-disk problem directories: small
// filesystem-backed records used by a crash-capture pipeline to collect
// metadata and binary artifacts about a single fault event.
//
// A problem directory is an ordinary directory containing a "time" file
// (which marks it as valid), an optional ".lock" symlink (an advisory,
// PID-checked lock held by whichever process currently owns write access),
// and zero or more items — regular files holding text or binary content.
// Many cooperating processes on the same host may create, read, augment,
// and delete these directories concurrently; this package provides the
// locking protocol and item surface that makes that safe.
//
// The package does not perform network access, coordinate across hosts, or
// guarantee a consistent snapshot across multiple items read by an unlocked
// handle — individual items are durable, but cross-item consistency is not
// promised.
package dumpdir
