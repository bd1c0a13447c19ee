package database

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/storepos/internal/retry"
)

// ErrNoDatabaseURL is returned when no URL was configured and none could be
// found in the environment or a .env file.
var ErrNoDatabaseURL = errors.New("DATABASE_URL not found in environment or .env")

// NewDB opens the licence database. An empty url falls back to
// DATABASE_URL from the environment or the nearest .env file. The ping is
// retried so the server can start alongside its database.
func NewDB(ctx context.Context, url string) (*sql.DB, error) {
	dbURL, err := resolveURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	res := retry.RetryWithBackoff(ctx, retry.DatabaseRetryConfig(), "database ping", func() error {
		err := db.PingContext(ctx)
		if err != nil && !retry.IsRetryableError(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if !res.Success {
		db.Close()
		return nil, fmt.Errorf("failed to ping db after %d attempts: %w", res.Attempts, res.LastError)
	}

	return db, nil
}

// NewPool opens a pgx pool for the job queue.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	dbURL, err := resolveURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get database URL: %w", err)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	res := retry.RetryWithBackoff(ctx, retry.DatabaseRetryConfig(), "pool ping", func() error {
		return pool.Ping(ctx)
	})
	if !res.Success {
		pool.Close()
		return nil, fmt.Errorf("failed to ping pool: %w", res.LastError)
	}
	return pool, nil
}

func resolveURL(url string) (string, error) {
	if url = strings.TrimSpace(url); url != "" {
		return url, nil
	}
	return loadDatabaseURL()
}

func loadDatabaseURL() (string, error) {
	if direct := strings.TrimSpace(os.Getenv("DATABASE_URL")); direct != "" {
		return direct, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	envPath, err := findEnvFile(wd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDatabaseURL, err)
	}
	return readEnvValue(envPath, "DATABASE_URL")
}

func readEnvValue(envPath, want string) (string, error) {
	file, err := os.Open(envPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", envPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != want {
			continue
		}

		value = strings.Trim(strings.TrimSpace(value), "\"'")
		value = strings.TrimFunc(value, unicode.IsSpace)
		if value == "" {
			return "", fmt.Errorf("%s is empty in %s", want, envPath)
		}
		return value, nil
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", envPath, err)
	}
	return "", ErrNoDatabaseURL
}

func findEnvFile(start string) (string, error) {
	dir := start
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf(".env not found starting from %s", start)
}
