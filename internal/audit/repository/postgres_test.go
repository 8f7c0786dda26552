package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"blog-platform/backend/internal/audit/domain"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_NullableColumns(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+audit_logs\b`).
		WithArgs("a1", nil, domain.ActionLoginFailure, "session", "10.0.0.1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.AuditLog{
		ID: "a1", Action: domain.ActionLoginFailure, Resource: "session", IP: "10.0.0.1", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByUser_DefaultLimit(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "ip", "metadata", "created_at"}).
		AddRow("a2", "u1", domain.ActionLogout, "session", "10.0.0.1", nil, now).
		AddRow("a1", "u1", domain.ActionLogin, "session", "10.0.0.1", "session_id=s1", now.Add(-time.Minute))
	mock.ExpectQuery(`(?s)FROM\s+audit_logs\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2`).
		WithArgs("u1", int32(50)).
		WillReturnRows(rows)

	list, err := repo.ListByUser(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].Metadata != "" || list[1].Metadata != "session_id=s1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}
