// Package response assembles user-facing replies from a classified match.
//
// Each confidence tier has an ordered list of template variants, longest
// first. A reply always opens by acknowledging the user's state, discloses
// the evidence verbatim with its reference, and closes with a short applied
// sentence. Replies must fit a word band; the assembler falls back to shorter
// variants, then to a single citation, before giving up.
package response
