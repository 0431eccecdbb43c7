package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

func TestAnalysisRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &AnalysisRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	analysis := &models.BatchAnalysis{
		ID:            "ana_1",
		AgentID:       "agt_1",
		CallCount:     10,
		DaysSince:     7,
		Model:         "claude-sonnet-4-5",
		AverageScores: models.Scores{Quality: 7.5},
		CreatedAt:     time.Now(),
	}

	mock.ExpectExec("INSERT INTO ai_batch_analyses").
		WithArgs(
			"ana_1", "agt_1", 10, 7, "claude-sonnet-4-5",
			pgxmock.AnyArg(), []byte("[]"), []byte("[]"),
			sql.NullString{}, pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := setupMockContext(mock)
	if err := repo.Create(ctx, analysis); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAnalysisRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &AnalysisRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	now := time.Now()
	analysisRows := pgxmock.NewRows([]string{
		"id", "agent_id", "call_count", "days_since", "model", "average_scores", "issues", "patterns", "summary", "created_at",
	}).AddRow(
		"ana_1", "agt_1", 2, 7, "claude-sonnet-4-5",
		[]byte(`{"quality":6,"empathy":7,"professionalism":8,"efficiency":5,"goal_achievement":6}`),
		[]byte(`[{"issue":"Does not confirm appointment time","severity":"high","target_section":"call_flow","frequency":2}]`),
		[]byte(`[]`),
		sql.NullString{String: "Mostly fine", Valid: true},
		now,
	)

	evaluationRows := pgxmock.NewRows([]string{
		"id", "analysis_id", "call_id", "agent_id", "scores", "issues_detected", "summary", "created_at",
	}).AddRow(
		"eval_1", "ana_1", "call_1", "agt_1",
		[]byte(`{"quality":6}`), []byte(`[]`), sql.NullString{}, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM ai_batch_analyses WHERE id").
		WithArgs("ana_1").
		WillReturnRows(analysisRows)
	mock.ExpectQuery("SELECT (.+) FROM ai_call_evaluations").
		WithArgs("ana_1").
		WillReturnRows(evaluationRows)

	ctx := setupMockContext(mock)
	analysis, err := repo.GetByID(ctx, "ana_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if analysis.AverageScores.Professionalism != 8 {
		t.Errorf("expected professionalism 8, got %v", analysis.AverageScores.Professionalism)
	}
	if len(analysis.Issues) != 1 || analysis.Issues[0].Severity != models.SeverityHigh {
		t.Errorf("unexpected issues: %+v", analysis.Issues)
	}
	if len(analysis.Evaluations) != 1 || analysis.Evaluations[0].Scores.Quality != 6 {
		t.Errorf("unexpected evaluations: %+v", analysis.Evaluations)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestAnalysisRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	repo := &AnalysisRepository{
		BaseRepository: BaseRepository{pool: nil},
	}

	mock.ExpectQuery("SELECT (.+) FROM ai_batch_analyses WHERE id").
		WithArgs("ana_missing").
		WillReturnError(pgx.ErrNoRows)

	ctx := setupMockContext(mock)
	_, err = repo.GetByID(ctx, "ana_missing")
	if !errors.Is(err, domain.ErrAnalysisNotFound) {
		t.Errorf("expected ErrAnalysisNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
