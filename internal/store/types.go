package store

import "time"

// Phrase is a user-defined code table entry.
type Phrase struct {
	ID        int64
	Scheme    string
	Code      string
	Value     string
	Priority  bool // listed ahead of the table's own candidates
	CreatedAt time.Time
}

// Commit is one recorded commit.
type Commit struct {
	Scheme     string
	Code       string
	Text       string
	Wildcard   bool
	Homophone  bool
	Simplified bool
	Auto       bool
	At         time.Time
}

// CommitCount is an aggregated commit frequency.
type CommitCount struct {
	Code  string
	Text  string
	Count int64
	Last  time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	Phrases       int64
	Commits       int64
	DistinctTexts int64
	FirstCommit   *time.Time
	LastCommit    *time.Time
}
