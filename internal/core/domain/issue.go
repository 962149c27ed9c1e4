package domain

import "time"

// Bullet pairs a selected item with its one-line summary.
type Bullet struct {
	Item    Item
	Summary string
}

// IssueDraft is the assembled, not yet formatted digest.
type IssueDraft struct {
	Date       time.Time
	TopSignals []Item
	Bullets    []Bullet
	ImpactsMD  string
	Themes     map[string]bool
	Clusters   map[string][]Item
}

// IssueFinal is the rendered digest document.
type IssueFinal struct {
	Markdown     string
	WordCount    int
	LinksChecked bool
	Polished     bool
}
