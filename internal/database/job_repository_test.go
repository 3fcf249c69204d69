package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/talentbridge/matchsync/internal/database"
	"github.com/talentbridge/matchsync/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func jobColumns() []string {
	return []string{
		"id", "partner_id", "external_id", "title", "description",
		"requirements", "company", "location", "salary_raw", "status",
		"posted_at", "enrichment", "created_at", "updated_at",
	}
}

func TestJobRepository_Upsert(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	job := &domain.Job{
		PartnerID:   "boardlink",
		ExternalID:  "job-42",
		Title:       "Senior Go Developer",
		Description: "Build backend services",
		Status:      domain.JobStatusOpen,
		PostedAt:    now,
	}

	t.Run("insert returns changed", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewJobRepository(db)

		rows := sqlmock.NewRows([]string{"id"}).AddRow("internal-1")
		mock.ExpectQuery("INSERT INTO jobs").WillReturnRows(rows)

		id, changed, err := repo.Upsert(ctx, job)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if !changed {
			t.Error("Upsert() changed = false, want true")
		}
		if id != "internal-1" {
			t.Errorf("Upsert() id = %q, want %q", id, "internal-1")
		}

		if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
			t.Errorf("unfulfilled expectations: %v", expectErr)
		}
	})

	t.Run("identical fields returns unchanged", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewJobRepository(db)

		// DO UPDATE ... WHERE IS DISTINCT FROM skips the write, so the
		// statement returns no row and the id is fetched separately.
		mock.ExpectQuery("INSERT INTO jobs").WillReturnError(sql.ErrNoRows)
		rows := sqlmock.NewRows(jobColumns()).AddRow(
			"internal-1", "boardlink", "job-42", "Senior Go Developer",
			"Build backend services", "", "", "", "",
			"open", now, nil, now, now,
		)
		mock.ExpectQuery("SELECT").
			WithArgs("boardlink", "job-42").
			WillReturnRows(rows)

		_, changed, err := repo.Upsert(ctx, job)
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if changed {
			t.Error("Upsert() changed = true, want false for identical row")
		}

		if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
			t.Errorf("unfulfilled expectations: %v", expectErr)
		}
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewJobRepository(db)

		mock.ExpectQuery("INSERT INTO jobs").WillReturnError(sql.ErrConnDone)

		if _, _, err := repo.Upsert(ctx, job); err == nil {
			t.Error("Upsert() error = nil, want error")
		}
	})
}

func TestJobRepository_SetEnrichment(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	enrichment := &domain.JobEnrichment{
		Seniority: domain.SenioritySenior,
		Status:    domain.EnrichmentSuccess,
	}

	testCases := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
	}{
		{
			name: "updates enrichment",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE jobs").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing job returns ErrNotFound",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE jobs").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := database.NewJobRepository(db)
			tc.setupMock(mock)

			err := repo.SetEnrichment(ctx, "internal-1", enrichment)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("SetEnrichment() error = %v", err)
			}
			if tc.wantErr != nil && err == nil {
				t.Fatalf("SetEnrichment() error = nil, want %v", tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestJobRepository_GetByID(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	now := time.Now()

	t.Run("found with enrichment", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewJobRepository(db)

		enrichment := `{"skills":[{"name":"go","minimum_level":3,"required":true}],` +
			`"seniority":"senior","required_years":5,"benefits":["remote"],` +
			`"currency":"USD","location_code":"REMOTE","difficulty":0.6,` +
			`"remote_ok":true,"hybrid_ok":false,"status":"success"}`
		rows := sqlmock.NewRows(jobColumns()).AddRow(
			"internal-1", "boardlink", "job-42", "Senior Go Developer",
			"desc", "reqs", "Acme", "Remote", "$120k-$150k",
			"open", now, []byte(enrichment), now, now,
		)
		mock.ExpectQuery("SELECT").WithArgs("internal-1").WillReturnRows(rows)

		job, err := repo.GetByID(ctx, "internal-1")
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !job.Enriched() {
			t.Error("job.Enriched() = false, want true")
		}
		if got := job.Enrichment.Seniority; got != domain.SenioritySenior {
			t.Errorf("seniority = %q, want senior", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := database.NewJobRepository(db)

		mock.ExpectQuery("SELECT").WithArgs("missing").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(ctx, "missing")
		if err != domain.ErrNotFound {
			t.Errorf("GetByID() error = %v, want ErrNotFound", err)
		}
	})
}
