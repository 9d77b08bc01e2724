// Package model defines the action log shared by every replica of a game:
// immutable actions with integer-only payload values, the ordered log, and
// the canonical JSON encoding used to compare replicas byte for byte.
package model
