// Package id generates prefixed, URL-safe identifiers for things that never touch storage.
// Books and loans get their numeric ids from the store.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use.
const (
	PrefixNotifierRun = "run"
)

// runIDLength keeps notifier run ids short enough to scan in logs.
const runIDLength = 12

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "run-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NotifierRun returns an id tagging one overdue-notifier run.
func NotifierRun() (string, error) {
	id, err := gonanoid.New(runIDLength)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return PrefixNotifierRun + "-" + id, nil
}
