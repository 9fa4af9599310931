// Package bandit implements the content decision core: a multi-armed
// bandit over (format x hook x topic x time-of-day) arms using Thompson
// Sampling over Beta posteriors, with a UCB1 alternative, conjugate
// posterior updates from shaped engagement rewards, and prior injection
// from the mined external-pattern distribution.
//
// The package is store-agnostic: it depends on the ArmStore and
// WeightSource interfaces and never touches SQL directly.
package bandit
