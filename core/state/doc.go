// Package state keeps per-identity conversational state in memory. An identity
// is a user inside an optional chat and an optional forum topic; the same user
// in two topics owns two independent bundles.
package state
