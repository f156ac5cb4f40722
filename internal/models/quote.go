package models

// Quote is an inspirational quote shown on the dashboard.
type Quote struct {
	ID       string `bson:"_id" json:"id"`
	Text     string `bson:"text" json:"text"`
	Author   string `bson:"author" json:"author"`
	Category string `bson:"category" json:"category"`
}

// DisplayQuote is a Quote with the card colour it is shown on.
type DisplayQuote struct {
	Quote
	BackgroundColor string `json:"background_color"`
}
