// Package seminar defines the core types shared across the collection and
// notification pipeline: sources, raw candidates, canonical events,
// subscribers, routes, and the collaborator interfaces the orchestrator
// depends on.
package seminar
