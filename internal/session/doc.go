// Package session keeps one game's local action log synchronized with the
// authoritative log.
//
// A Session owns the local log of its game. Local actions are appended
// immediately, recorded as pending, and drained through a single outbound
// queue: over the persistent channel while it is synced, otherwise through
// the batched fallback. Actions broadcast back by the authoritative side are
// matched against the pending set, so a device never applies its own action
// twice.
//
// All state changes happen on the goroutine running Session.Run. Network
// calls and timers run elsewhere and report back through the inbox; each
// report carries the generation (or connection epoch) that issued it, and
// reports from an older generation are dropped.
package session
