package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

// Service wraps the Postgres handle used for tournament and room
// persistence. The rest of the server treats a nil Service as degraded
// mode: everything keeps running on in-memory state.
type Service interface {
	DB() *sql.DB
	Health() map[string]string
	Close() error
}

type service struct {
	db *sql.DB
}

// New connects using LUDO_DATABASE_URL. An unset URL or unreachable
// database yields nil rather than an error: persistence is optional and
// the caller runs in-memory without it.
func New() Service {
	url := os.Getenv("LUDO_DATABASE_URL")
	if url == "" {
		log.Println("LUDO_DATABASE_URL not set, running without persistence")
		return nil
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		log.Printf("Failed to open database, running without persistence: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Printf("Database unreachable, running without persistence: %v", err)
		db.Close()
		return nil
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &service{db: db}
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "up"}
	if err := s.db.PingContext(ctx); err != nil {
		status["status"] = "down"
		status["error"] = err.Error()
		return status
	}

	stats := s.db.Stats()
	status["open_connections"] = fmt.Sprintf("%d", stats.OpenConnections)
	status["in_use"] = fmt.Sprintf("%d", stats.InUse)
	return status
}

func (s *service) Close() error {
	return s.db.Close()
}
