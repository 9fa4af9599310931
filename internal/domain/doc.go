// Package domain holds the shared entities of the impression agent:
// harvested posts, mined structural patterns, bandit arms, template
// weights, published posts, and metric snapshots.
//
// Entities here carry no behavior beyond simple derived accessors.
// Decision logic lives in the consuming packages (bandit, miner, synth,
// learning); persistence lives in repository/postgres.
package domain
