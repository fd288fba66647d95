package gradingRepository_test

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"KneeGrader/internal/api/grading"
	gradingRepository "KneeGrader/internal/api/grading/repository"
	"KneeGrader/internal/entity"
	"KneeGrader/pkg/jointspace"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var analysisColumns = []string{
	"id", "request_id", "file_key", "original_name", "sha256",
	"width_a", "width_b", "classification", "insufficient_structure", "created_at",
}

var createdAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepository(t *testing.T) (gradingRepository.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})

	l := logrus.New()
	l.SetOutput(io.Discard)
	return gradingRepository.New(sqlx.NewDb(db, "postgres"), l), mock
}

func sampleAnalysis() entity.Analysis {
	return entity.Analysis{
		ID:             "01JNQ4D2V8X6Y0Z5K3M7P9R1T2",
		RequestID:      "01JNQ4D2V8REQUEST000000000",
		FileKey:        "uploads/01JNQ4D2V8X6Y0Z5K3M7P9R1T2-knee.png",
		OriginalName:   "knee.png",
		SHA256:         "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		WidthA:         15,
		WidthB:         4,
		Classification: string(jointspace.GradeSevere),
		CreatedAt:      createdAt,
	}
}

func TestCreateAnalysis(t *testing.T) {
	repo, mock := newRepository(t)
	a := sampleAnalysis()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analyses")).
		WithArgs(a.ID, a.RequestID, a.FileKey, a.OriginalName, a.SHA256,
			int64(15), int64(4), a.Classification, false, createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	client, err := repo.NewClient(false)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := client.Analysis.CreateAnalysis(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestCreateAnalysis_InTransaction(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analyses")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	client, err := repo.NewClient(true)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := client.Analysis.CreateAnalysis(context.Background(), sampleAnalysis()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := client.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestCreateAnalysis_DatabaseError(t *testing.T) {
	repo, mock := newRepository(t)
	dbErr := errors.New("relation \"analyses\" does not exist")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analyses")).WillReturnError(dbErr)

	client, _ := repo.NewClient(false)
	if err := client.Analysis.CreateAnalysis(context.Background(), sampleAnalysis()); !errors.Is(err, dbErr) {
		t.Fatalf("want database error, got %v", err)
	}
}

func TestGetAnalysisByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newRepository(t)
		a := sampleAnalysis()

		mock.ExpectQuery(regexp.QuoteMeta("FROM analyses WHERE id = $1")).
			WithArgs(a.ID).
			WillReturnRows(sqlmock.NewRows(analysisColumns).AddRow(
				a.ID, a.RequestID, a.FileKey, a.OriginalName, a.SHA256,
				int64(15), int64(4), a.Classification, false, createdAt))

		client, _ := repo.NewClient(false)
		got, err := client.Analysis.GetAnalysisByID(context.Background(), a.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != a {
			t.Fatalf("got %+v, want %+v", got, a)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta("FROM analyses WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(analysisColumns))

		client, _ := repo.NewClient(false)
		if _, err := client.Analysis.GetAnalysisByID(context.Background(), "missing"); !errors.Is(err, grading.ErrAnalysisNotFound) {
			t.Fatalf("want ErrAnalysisNotFound, got %v", err)
		}
	})
}

func TestListRecentAnalyses(t *testing.T) {
	repo, mock := newRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(analysisColumns).
			AddRow("b", "req-b", "uploads/b-knee.png", "knee.png", "hash-b",
				int64(9), int64(9), string(jointspace.GradeNormal), false, createdAt).
			AddRow("a", "req-a", "uploads/a-blank.png", "blank.png", "hash-a",
				int64(0), int64(0), string(jointspace.GradeSevere), true, createdAt.Add(-time.Hour)))

	client, _ := repo.NewClient(false)
	got, err := client.Analysis.ListRecentAnalyses(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected order %+v", got)
	}
	if !got[1].InsufficientStructure || got[0].WidthA != 9 {
		t.Fatalf("columns not scanned: %+v", got)
	}
}
