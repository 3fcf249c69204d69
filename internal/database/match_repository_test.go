package database_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/domain"
)

func matchColumns() []string {
	return []string{
		"id", "candidate_id", "job_id", "final_score", "components",
		"recommendation", "explanation", "strengths", "gaps", "submitted",
		"created_at", "updated_at",
	}
}

func matchRow(now time.Time, id string, score float64, rec string, submitted bool) []driver.Value {
	components := `{"skill":0.9,"seniority":1,"experience":0.8,` +
		`"culture":1,"growth":0.5,"salary":0.8}`
	return []driver.Value{
		id, "cand-1", "job-1", score, []byte(components),
		rec, "strong skill overlap", []byte("{go,postgresql}"), []byte("{}"),
		submitted, now, now,
	}
}

func TestMatchRepository_Upsert(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	match := &domain.Match{
		CandidateID: "cand-1",
		JobID:       "job-1",
		FinalScore:  0.82,
		Components: domain.ComponentScores{
			Skill: 0.9, Seniority: 1, Experience: 0.8,
			Culture: 1, Growth: 0.5, Salary: 0.8,
		},
		Recommendation: domain.RecommendationGood,
		Explanation:    "strong skill overlap",
		Strengths:      []string{"go", "postgresql"},
	}

	t.Run("first score inserts and reports changed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT").
			WithArgs("cand-1", "job-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO matches").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		changed, err := repo.Upsert(ctx, match)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if !changed {
			t.Error("Upsert() changed = false, want true for first score")
		}
		if match.ID == "" {
			t.Error("Upsert() did not assign an id")
		}

		if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
			t.Errorf("unfulfilled expectations: %v", expectErr)
		}
	})

	t.Run("rescore with same outcome reports unchanged", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT").
			WithArgs("cand-1", "job-1").
			WillReturnRows(sqlmock.NewRows(matchColumns()).
				AddRow(matchRow(now, "match-1", 0.82, "good", true)...))
		mock.ExpectExec("UPDATE matches").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rescored := *match
		changed, err := repo.Upsert(ctx, &rescored)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if changed {
			t.Error("Upsert() changed = true, want false for identical outcome")
		}
		// The stored submitted flag survives a rescore.
		if !rescored.Submitted {
			t.Error("Upsert() dropped the submitted flag")
		}
		if rescored.ID != "match-1" {
			t.Errorf("Upsert() id = %q, want match-1", rescored.ID)
		}
	})

	t.Run("rescore with new score reports changed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT").
			WithArgs("cand-1", "job-1").
			WillReturnRows(sqlmock.NewRows(matchColumns()).
				AddRow(matchRow(now, "match-1", 0.55, "possible", false)...))
		mock.ExpectExec("UPDATE matches").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rescored := *match
		changed, err := repo.Upsert(ctx, &rescored)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if !changed {
			t.Error("Upsert() changed = false, want true when score moved")
		}
	})

	t.Run("lock failure rolls back", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("pg_advisory_xact_lock").WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		if _, err := repo.Upsert(ctx, match); err == nil {
			t.Error("Upsert() error = nil, want error")
		}
	})
}

func TestMatchRepository_MarkSubmitted(t *testing.T) {
	t.Helper()

	ctx := context.Background()

	t.Run("marks match", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectExec("UPDATE matches").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.MarkSubmitted(ctx, "match-1"); err != nil {
			t.Fatalf("MarkSubmitted() error = %v", err)
		}
	})

	t.Run("missing match returns ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewMatchRepository(db)

		mock.ExpectExec("UPDATE matches").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := repo.MarkSubmitted(ctx, "missing"); err != domain.ErrNotFound {
			t.Errorf("MarkSubmitted() error = %v, want ErrNotFound", err)
		}
	})
}

func TestMatchRepository_ListForJob(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	db, mock := newMockDB(t)
	repo := database.NewMatchRepository(db)

	rows := sqlmock.NewRows(matchColumns()).
		AddRow(matchRow(now, "match-2", 0.91, "perfect", false)...).
		AddRow(matchRow(now, "match-1", 0.74, "good", false)...)
	mock.ExpectQuery("SELECT").
		WithArgs("job-1", 2).
		WillReturnRows(rows)

	matches, err := repo.ListForJob(ctx, "job-1", 2)
	if err != nil {
		t.Fatalf("ListForJob() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("ListForJob() returned %d matches, want 2", len(matches))
	}
	if matches[0].ID != "match-2" {
		t.Errorf("first match = %q, want best-scoring match-2", matches[0].ID)
	}
	if got := matches[0].Components.Skill; got != 0.9 {
		t.Errorf("skill component = %v, want 0.9", got)
	}
	if len(matches[0].Strengths) != 2 {
		t.Errorf("strengths = %v, want two entries", matches[0].Strengths)
	}
}
