package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/todo-service/internal/apperror"
	"github.com/sakif/todo-service/internal/books"
	"github.com/sakif/todo-service/internal/model"
)

// BooksHandler serves the unauthenticated books demo.
//
// The store is injected, not a package variable: the server owns one
// *books.Store and every request sees the same one.
type BooksHandler struct {
	store  *books.Store
	logger *slog.Logger
}

func NewBooksHandler(store *books.Store, logger *slog.Logger) *BooksHandler {
	return &BooksHandler{store: store, logger: logger}
}

// HandleList returns every book.
//
// HTTP: GET /books
func (h *BooksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// HandleGet returns one book.
//
// HTTP: GET /books/{id}
func (h *BooksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	book, err := h.store.Get(int(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleByRating filters by rating.
//
// HTTP: GET /books/?book_rating=5
func (h *BooksHandler) HandleByRating(w http.ResponseWriter, r *http.Request) {
	rating, err := queryInt(r, "book_rating")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.store.ByRating(rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleByPublishedDate filters by publication year.
//
// HTTP: GET /books/publish/?publish_date=2016
func (h *BooksHandler) HandleByPublishedDate(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "publish_date")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.store.ByPublishedDate(year)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCreate adds a book. Any id in the body is ignored.
//
// HTTP: POST /create_book
func (h *BooksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.Book
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	book, err := h.store.Create(req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("book created", slog.Int("id", book.ID))
	writeJSON(w, http.StatusCreated, book)
}

// HandleUpdate replaces the book named by the id in the body.
//
// HTTP: PUT /books/update_book
func (h *BooksHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.Book
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Update(req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a book.
//
// HTTP: DELETE /books/{id}
func (h *BooksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Delete(int(id)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads a required integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperror.ValidationFailed(name, name+" is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
