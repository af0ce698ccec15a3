// Package heuristic implements the transparent text scorer used to match
// user messages against the curated Q&A set.
//
// A score combines three components: concept groups (coarse synonym sets),
// phrase groups (finer set phrases) and plain word overlap. Each component is
// kept in a core.ScoreBreakdown so every decision can be explained. The
// vocabulary is data: it is read from YAML and the defaults are embedded in
// the binary.
package heuristic
