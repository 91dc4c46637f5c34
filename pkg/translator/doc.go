// Package translator turns the JSON (or YAML) build configuration passed into a CI workflow into
// the two shapes the workflow scripts consume: KEY=value environment assignments for a single
// build step, and per-stage job matrices for the CI platform to fan out.
//
// Everything here is a single pure pass over the input. Nothing is cached between invocations.
package translator
