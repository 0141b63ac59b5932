// Package agent runs a local Claude tool-use loop over the registered
// action-group tools. It stands in for the hosted agent runtime so the
// tool contract can be exercised end to end without deploying anything.
package agent
