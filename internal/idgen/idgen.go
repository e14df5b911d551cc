// Package idgen generates short, URL-safe IDs for lead notes, tasks and demo leads.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the entities that carry short IDs.
const (
	NotePrefix     = "note-"
	TaskPrefix     = "task-"
	DemoLeadPrefix = "demo-"
)

// Alphabet is the character set used for the random portion of an ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters after the prefix.
const Length = 10

// WithPrefix returns a new ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// NoteID returns a new note ID.
func NoteID() (string, error) {
	return WithPrefix(NotePrefix)
}

// TaskID returns a new task ID.
func TaskID() (string, error) {
	return WithPrefix(TaskPrefix)
}

// Func adapts WithPrefix to the func() string shape orchestrator deps use.
// It panics only if the system random source fails.
func Func(prefix string) func() string {
	return func() string {
		id, err := WithPrefix(prefix)
		if err != nil {
			panic(err)
		}
		return id
	}
}
