package catalog

// Book is a catalog entry. ID is the catalog id, ExternalID the source (Goodreads) id.
type Book struct {
	ID            int
	ExternalID    int
	Title         string
	Authors       string
	OriginalTitle string
	ISBN          string
	Year          int
	LanguageCode  string
	AverageRating float64
	RatingsCount  int
	ImageURL      string
}

// Tag is a human-readable label applied to books.
type Tag struct {
	ID   int
	Name string
}

// BookTag links a book (by external id) to a tag.
type BookTag struct {
	ExternalBookID int
	TagID          int
	Count          int
}

// Prediction is one precomputed score for a user/item pair.
type Prediction struct {
	UserID int
	ItemID int
	Score  float64
}
