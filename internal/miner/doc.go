// Package miner converts harvested posts into reusable structural
// pattern labels via the text-classification collaborator, and exposes
// the aggregated pattern distribution consumed by template synthesis
// and bandit prior injection.
package miner
