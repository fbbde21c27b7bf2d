// Package main provides a tool to seed a SQLite database with sample books and loans.
//
// Some loans are dated far enough back to be late, so the overdue notifier has
// something to send.
//
// Usage:
//
//	DATA_PATH=~/LibraryAPI/data go run ./cmd/seed
//	DATA_PATH=~/LibraryAPI/data go run ./cmd/seed --books 50 --late 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/service"
	"github.com/libraryapi/library-server/internal/store/sqlite"
	"github.com/libraryapi/library-server/internal/validation"
)

var (
	bookCount   = flag.Int("books", 20, "Number of books to register")
	lateCount   = flag.Int("late", 5, "Number of books to lend with a late loan")
	activeCount = flag.Int("active", 5, "Number of books to lend today")
	overdueDays = flag.Int("overdue-days", service.DefaultOverdueDays, "Days after which a loan is late")
)

var (
	titles  = []string{"Dom Casmurro", "Grande Sertão", "Vidas Secas", "Capitães da Areia", "Iracema", "O Cortiço", "Memórias Póstumas", "A Hora da Estrela"}
	authors = []string{"Machado de Assis", "Guimarães Rosa", "Graciliano Ramos", "Jorge Amado", "José de Alencar", "Aluísio Azevedo", "Clarice Lispector"}
	names   = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fabio", "Gabriela", "Heitor"}
)

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/LibraryAPI/data")
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataPath, "library.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	s, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	v := validation.New()
	books := service.NewBookService(s, v, logger)
	loans := service.NewLoanService(s, s, v, logger)

	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))

	created := make([]*domain.Book, 0, *bookCount)
	for n := range *bookCount {
		book, err := books.Save(ctx, &domain.Book{
			Title:  fmt.Sprintf("%s %d", titles[rng.IntN(len(titles))], n+1),
			Author: authors[rng.IntN(len(authors))],
			ISBN:   fmt.Sprintf("978-0-%06d-%02d-%d", rng.IntN(1_000_000), n%100, rng.IntN(10)),
		})
		if err != nil {
			log.Printf("Skipping book %d: %v", n+1, err)
			continue
		}
		created = append(created, book)
	}
	fmt.Printf("Registered %d books\n", len(created))

	today := domain.CalendarDate(time.Now())
	lent := 0
	for idx, book := range created {
		var date time.Time
		switch {
		case idx < *lateCount:
			// At least one day past the overdue threshold.
			date = today.AddDate(0, 0, -(*overdueDays + 1 + rng.IntN(10)))
		case idx < *lateCount+*activeCount:
			date = today
		default:
			continue
		}

		name := names[rng.IntN(len(names))]
		email := fmt.Sprintf("%s.%d@example.com", name, idx)
		if _, err := loans.CreateLoan(ctx, book, name, email, date); err != nil {
			log.Printf("Failed to lend %q: %v", book.Title, err)
			continue
		}
		lent++
	}
	fmt.Printf("Created %d loans (%d late)\n", lent, min(*lateCount, len(created)))
}
