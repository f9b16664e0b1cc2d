// Package books is a small in-memory catalogue, kept separate from the todo
// service's database. It exists to demo plain CRUD routing without auth.
//
// STATE WITHOUT GLOBALS:
// The catalogue lives in a *Store created once in server.New and handed to
// the handler. Two servers in one test binary get two independent stores.
package books

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/model"
)

// Validation bounds for a book.
const (
	MinTitleLength       = 3
	MaxDescriptionLength = 100
	MinRating            = 1
	MaxRating            = 5
	MinPublishedDate     = 1951
	MaxPublishedDate     = 2023
)

// Store is a mutex-guarded map of books plus their insertion order.
//
// WHY BOTH A MAP AND A SLICE?
// The map gives O(1) lookup by id. The slice remembers the order books were
// added in, so List is stable and "last id + 1" is well defined.
type Store struct {
	mu    sync.RWMutex
	books map[int]*model.Book
	order []int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{books: make(map[int]*model.Book)}
}

// NewSeededStore returns a store with the six demo books.
func NewSeededStore() *Store {
	s := NewStore()
	for _, b := range []model.Book{
		{ID: 1, Title: "Computer Science", Author: "coding with Aditya", Description: "A very nice book", Rating: 5, PublishedDate: 2012},
		{ID: 2, Title: "Be fast with FastAPI", Author: "coding with Aditya", Description: "A great book", Rating: 5, PublishedDate: 2013},
		{ID: 3, Title: "Master Endpoints", Author: "coding with Aditya", Description: "An awesome book!", Rating: 5, PublishedDate: 2014},
		{ID: 4, Title: "HP1", Author: "Author 1", Description: "Book Description", Rating: 2, PublishedDate: 2016},
		{ID: 5, Title: "HP2", Author: "Author 2", Description: "Book Description", Rating: 3, PublishedDate: 2016},
		{ID: 6, Title: "HP3", Author: "Author 3", Description: "Book Description", Rating: 1, PublishedDate: 2014},
	} {
		b := b
		s.books[b.ID] = &b
		s.order = append(s.order, b.ID)
	}
	return s
}

// List returns every book in insertion order.
func (s *Store) List() []model.Book {
	return s.filter(func(*model.Book) bool { return true })
}

// Get returns the book with id, or apperror.ErrNotFound.
func (s *Store) Get(id int) (model.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return model.Book{}, apperror.NotFound("book", id)
	}
	return *b, nil
}

// ByRating returns books with exactly this rating.
func (s *Store) ByRating(rating int) ([]model.Book, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, apperror.ValidationFailed("book_rating", "book_rating must be between 1 and 5")
	}
	return s.filter(func(b *model.Book) bool { return b.Rating == rating }), nil
}

// ByPublishedDate returns books published in year.
func (s *Store) ByPublishedDate(year int) ([]model.Book, error) {
	if year < MinPublishedDate || year > MaxPublishedDate {
		return nil, apperror.ValidationFailed("publish_date",
			fmt.Sprintf("publish_date must be between %d and %d", MinPublishedDate, MaxPublishedDate))
	}
	return s.filter(func(b *model.Book) bool { return b.PublishedDate == year }), nil
}

// Create validates b, assigns it the id after the most recently added
// book, and stores it. Any id on the input is ignored.
func (s *Store) Create(b model.Book) (model.Book, error) {
	if err := Validate(&b); err != nil {
		return model.Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = 1
	if n := len(s.order); n > 0 {
		b.ID = s.order[n-1] + 1
	}
	s.books[b.ID] = &b
	s.order = append(s.order, b.ID)
	return b, nil
}

// Update replaces the book whose id matches b.ID.
func (s *Store) Update(b model.Book) error {
	if err := Validate(&b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[b.ID]; !ok {
		return apperror.NotFound("book", b.ID)
	}
	s.books[b.ID] = &b
	return nil
}

// Delete removes the book with id.
func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return apperror.NotFound("book", id)
	}
	delete(s.books, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Validate trims the text fields of b and checks every bound.
func Validate(b *model.Book) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Description = strings.TrimSpace(b.Description)

	switch {
	case utf8.RuneCountInString(b.Title) < MinTitleLength:
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be at least %d characters", MinTitleLength))
	case b.Author == "":
		return apperror.ValidationFailed("author", "author is required")
	case b.Description == "":
		return apperror.ValidationFailed("description", "description is required")
	case utf8.RuneCountInString(b.Description) > MaxDescriptionLength:
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	case b.Rating < MinRating || b.Rating > MaxRating:
		return apperror.ValidationFailed("rating", "rating must be between 1 and 5")
	case b.PublishedDate < MinPublishedDate || b.PublishedDate > MaxPublishedDate:
		return apperror.ValidationFailed("published_date",
			fmt.Sprintf("published_date must be between %d and %d", MinPublishedDate, MaxPublishedDate))
	}
	return nil
}

func (s *Store) filter(keep func(*model.Book) bool) []model.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Book, 0, len(s.order))
	for _, id := range s.order {
		if b := s.books[id]; keep(b) {
			result = append(result, *b)
		}
	}
	return result
}
