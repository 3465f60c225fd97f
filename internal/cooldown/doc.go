// ABOUTME: Package documentation for the cooldown package
// ABOUTME: Explains the re-delegation suppression window after a kill

// Package cooldown tracks (conversation, agent) pairs that were recently
// force-aborted.
//
// When a kill cascades through a delegation tree, the parent that issued a
// delegation may still be unwinding while an outer loop decides what to do
// next. Without a suppression window that loop can re-delegate the very task
// that was just killed back to the same agent, racing the teardown. The
// cascade writes a cooldown entry for every aborted pair before the kill
// call returns, so any re-delegation check that runs after a kill
// confirmation is guaranteed to observe the suppression.
//
// Entries are advisory and expire on a TTL; nothing in this package blocks
// a delegation by itself.
package cooldown
