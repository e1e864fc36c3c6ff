// Package checkpoint captures and restores working-tree state around
// risky agentic steps.
//
// Each checkpoint is a git commit of the full tree (untracked files
// included). Rollback is a hard reset plus clean back to a checkpoint,
// used only when an iteration regresses a previously passing build.
package checkpoint
