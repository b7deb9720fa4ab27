package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hiveagent/hive/pkg/models"
)

// TestSetMetaClassifiesDriverErrorAsStoreIO uses a mocked driver to force
// a failure that real SQLite won't reliably produce on demand, confirming
// that a raw driver error surfaces as models.KindStoreIO rather than
// leaking the underlying driver error type.
func TestSetMetaClassifiesDriverErrorAsStoreIO(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO meta").WillReturnError(errors.New("disk I/O error"))

	s := &Store{db: db}
	err = s.SetMeta(context.Background(), "theme", "dark")
	if err == nil {
		t.Fatal("expected error")
	}
	if !models.IsKind(err, models.KindStoreIO) {
		t.Fatalf("err = %v, want KindStoreIO", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
