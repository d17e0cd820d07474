// Package sanitizer normalizes user-supplied booking and availability input
// before validation and storage.
//
// All functions are idempotent. Invalid input is passed through in a trimmed
// form so the validator can reject it with a precise message.
package sanitizer
