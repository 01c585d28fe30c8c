package storage

import (
	"context"
	"testing"
	"time"

	"github.com/contact-verifier/internal/config"
	"github.com/contact-verifier/internal/types"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "contact_verifier",
		User:           "verifier",
		Password:       "verifier_dev_password",
		MaxConnections: 10,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.Ping(testContext(t)); err != nil {
		t.Skipf("Skipping test - Postgres not reachable: %v", err)
	}
	return db
}

func TestNewPostgresDB(t *testing.T) {
	db := testPostgres(t)

	if db.Pool() == nil {
		t.Error("Pool() returned nil")
	}
}

func TestPhoneRecordLifecycle(t *testing.T) {
	db := testPostgres(t)
	repo := NewPhoneRecordRepository(db)
	ctx := testContext(t)

	owner := "it-owner-" + time.Now().Format("150405.000000000")

	records, err := repo.BatchCreate(ctx, owner, []string{"+15550001", "+15550002"})
	if err != nil {
		t.Fatalf("BatchCreate() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("BatchCreate() created %d records, want 2", len(records))
	}

	// Duplicates are skipped silently.
	again, err := repo.BatchCreate(ctx, owner, []string{"+15550001", "+15550003"})
	if err != nil {
		t.Fatalf("BatchCreate() duplicate error = %v", err)
	}
	if len(again) != 1 {
		t.Errorf("BatchCreate() with one duplicate created %d records, want 1", len(again))
	}

	count, err := repo.CountUnchecked(ctx, owner)
	if err != nil {
		t.Fatalf("CountUnchecked() error = %v", err)
	}
	if count != 3 {
		t.Errorf("CountUnchecked() = %d, want 3", count)
	}

	unchecked, err := repo.FetchUnchecked(ctx, owner, 2)
	if err != nil {
		t.Fatalf("FetchUnchecked() error = %v", err)
	}
	if len(unchecked) != 2 {
		t.Fatalf("FetchUnchecked() returned %d records, want 2", len(unchecked))
	}

	err = repo.WriteOutcome(ctx, unchecked[0].ID, types.Outcome{
		Phone:    unchecked[0].Phone,
		Found:    true,
		Username: "alice",
	})
	if err != nil {
		t.Fatalf("WriteOutcome() error = %v", err)
	}

	count, err = repo.CountUnchecked(ctx, owner)
	if err != nil {
		t.Fatalf("CountUnchecked() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountUnchecked() after write = %d, want 2", count)
	}

	// Clean up what the test created.
	all, err := repo.ListByOwner(ctx, owner, 100, 0)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	for _, rec := range all {
		if err := repo.Delete(ctx, owner, rec.ID); err != nil {
			t.Errorf("Delete(%s) error = %v", rec.ID, err)
		}
	}
}
