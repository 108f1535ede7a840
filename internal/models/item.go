// Package models defines core data structures for indexed items, queries, and reports.
package models

// NoSlot marks an item that has metadata but no row in the vector file.
const NoSlot int64 = -1

// Item is one indexed audio file and the vector slot it occupies.
type Item struct {
	ID           int64   `json:"id" db:"id"`
	Path         string  `json:"path" db:"path"`
	Slot         int64   `json:"slot" db:"slot"`
	LastModified float64 `json:"last_modified" db:"last_modified"`
	Duration     float64 `json:"duration" db:"duration"`
}

// HasSlot reports whether the item is bound to a vector row.
func (i *Item) HasSlot() bool {
	return i.Slot >= 0
}
