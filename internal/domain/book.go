// Package domain contains the library's core entities and the rules that belong to them.
package domain

// Book is a catalogued title that customers can borrow.
// ISBN is unique across all books and is fixed once the book is registered.
type Book struct {
	Timestamps
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn"`
}

// HasID reports whether storage has assigned an identity to the book.
func (b *Book) HasID() bool {
	return b != nil && b.ID > 0
}

// ApplyEdit copies the mutable fields from edit onto b.
// ISBN is deliberately left untouched.
func (b *Book) ApplyEdit(edit *Book) {
	b.Title = edit.Title
	b.Author = edit.Author
}
