// Package evidence turns handbook-style source documents into
// citation-bearing chunks.
//
// A document is split into topic sections on heading boundaries. Each
// section yields one core.EvidenceChunk with two payloads:
//   - SearchText: the whole section (symptoms, evidence, treatment) used only
//     for embedding and matching
//   - DisclosureText: the rendered EvidenceItems parsed from the section's
//     evidence subsection, the only content allowed to reach users
//
// Evidence items are classified in a fixed order: scripture (quotation with a
// chapter:verse reference), tradition (quotation with a hadith collection
// reference) and scholar quote (quotation attributed to a named scholar).
// Sentences that match none of these are dropped.
package evidence
