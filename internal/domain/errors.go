// Package domain contains the core entities of the matchsync service:
// jobs, candidates, matches, placements, sync runs and webhooks.
package domain

import "errors"

// ErrNotFound is returned when an entity is not found in the store.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidTransition is returned when a placement status move is not
// allowed by the placement state machine.
var ErrInvalidTransition = errors.New("invalid placement transition")

// ErrNotEnriched is returned when an entity whose enrichment has not
// succeeded is handed to the scorer.
var ErrNotEnriched = errors.New("entity is not successfully enriched")
