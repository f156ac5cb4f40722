package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxTitleLength = 200
	MaxImages      = 10
)

// Entry is one diary record.
type Entry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	Date       time.Time          `bson:"date" json:"date"`
	Title      string             `bson:"title" json:"title"`
	Content    map[string]any     `bson:"content" json:"content"`
	Mood       Mood               `bson:"mood" json:"mood"`
	Images     []string           `bson:"images" json:"images"`
	DrawingURL *string            `bson:"drawing_url" json:"drawing_url"`
	Theme      string             `bson:"theme" json:"theme"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// EntryInput is what a caller submits when saving an entry. Mood is still in
// wire form here; it becomes a Mood once validation has passed.
type EntryInput struct {
	Title      string         `validate:"title"`
	Content    map[string]any
	Mood       string         `validate:"mood"`
	Images     []string       `validate:"images"`
	DrawingURL *string
	Theme      string
	Date       time.Time      `validate:"entrydate"`
}

// EntrySummary is the calendar view of an entry.
type EntrySummary struct {
	EntryID string    `json:"entry_id"`
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Mood    Mood      `json:"mood"`
}

// Summary returns the calendar view of e.
func (e *Entry) Summary() EntrySummary {
	return EntrySummary{
		EntryID: e.ID.Hex(),
		Date:    e.Date,
		Title:   e.Title,
		Mood:    e.Mood,
	}
}
