// Package release validates the inputs a workflow run was dispatched with and drives the steps
// around a release: tagging the commit and building the source distribution.
package release
