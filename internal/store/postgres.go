package store

import (
	"context"
	"errors"
	"fmt"

	"callpipe/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Calls ---

func (s *PostgresStore) CreateCall(ctx context.Context, call *models.Call) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (id, org_id, file_name, status, upload_status, upload_progress, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		call.ID, call.OrgID, call.FileName, call.Status, call.UploadStatus,
		call.UploadProgress, call.CreatedAt, call.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCall(ctx context.Context, id uuid.UUID) (*models.Call, error) {
	var c models.Call
	err := s.pool.QueryRow(ctx,
		`SELECT id, org_id, file_name, status, upload_status, upload_progress, created_at, updated_at
		 FROM calls WHERE id = $1`, id,
	).Scan(&c.ID, &c.OrgID, &c.FileName, &c.Status, &c.UploadStatus,
		&c.UploadProgress, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCallStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE calls SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return nil
}

// --- Artifacts ---

func (s *PostgresStore) RegisterArtifact(ctx context.Context, artifact *models.Artifact) error {
	id := artifact.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, org_id, call_id, kind, storage_path, content_type, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (storage_path) DO NOTHING`,
		id, artifact.OrgID, artifact.CallID, artifact.Kind,
		artifact.StoragePath, artifact.ContentType, artifact.SizeBytes)
	if err != nil {
		return fmt.Errorf("register artifact: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListArtifacts(ctx context.Context, callID uuid.UUID) ([]*models.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, call_id, kind, storage_path, content_type, size_bytes, created_at
		 FROM artifacts WHERE call_id = $1 ORDER BY created_at ASC`, callID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.ID, &a.OrgID, &a.CallID, &a.Kind,
			&a.StoragePath, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// --- Analyses ---

func (s *PostgresStore) GetAnalysisByPath(ctx context.Context, storagePath string) (*models.CallAnalysis, error) {
	var a models.CallAnalysis
	err := s.pool.QueryRow(ctx,
		`SELECT id, org_id, call_id, analysis_storage_path, transcript_filename, sales_rep_name,
		        language, source, headline_text, summary_text, bant_total_score, bant_total_max,
		        bant_verdict, created_at
		 FROM call_analyses WHERE analysis_storage_path = $1 LIMIT 1`, storagePath,
	).Scan(&a.ID, &a.OrgID, &a.CallID, &a.AnalysisStoragePath, &a.TranscriptFilename,
		&a.SalesRepName, &a.Language, &a.Source, &a.HeadlineText, &a.SummaryText,
		&a.BANTTotalScore, &a.BANTTotalMax, &a.BANTVerdict, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis by path: %w", err)
	}
	return &a, nil
}

// SaveAnalysis writes the header row, BANT criteria with their bullets, and
// the five blocks with their section items, time ranges, and recommendations
// in a single transaction. Partial persistence is never observable.
func (s *PostgresStore) SaveAnalysis(ctx context.Context, params SaveAnalysisParams) (bool, error) {
	doc := params.Doc
	if doc == nil {
		return false, errors.New("save analysis: document is nil")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin analysis transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existingID uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT id FROM call_analyses WHERE analysis_storage_path = $1 LIMIT 1`,
		params.StoragePath).Scan(&existingID)
	if err == nil {
		// Already persisted; re-runs short-circuit rather than duplicate.
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("check existing analysis: %w", err)
	}

	var source *string
	if doc.Meta.Source != "" {
		source = &doc.Meta.Source
	}

	var analysisID uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO call_analyses (
		   org_id, call_id, analysis_storage_path, transcript_filename, sales_rep_name,
		   language, source, headline_text, summary_text, bant_total_score, bant_total_max, bant_verdict
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		params.OrgID, params.CallID, params.StoragePath,
		doc.Meta.TranscriptFilename, doc.Meta.SalesRepName, doc.Meta.Language, source,
		doc.Headline.Text, doc.Summary.Text,
		*doc.BANT.TotalScore, *doc.BANT.TotalMax, doc.BANT.Verdict,
	).Scan(&analysisID)
	if err != nil {
		return false, fmt.Errorf("insert call_analyses row: %w", err)
	}

	for _, criterion := range doc.BANT.Criteria {
		var criterionID uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO call_analysis_bant_criteria (analysis_id, code, label, score, max_score)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			analysisID, criterion.Code, criterion.Label, criterion.Score, criterion.MaxScore,
		).Scan(&criterionID)
		if err != nil {
			return false, fmt.Errorf("insert BANT criterion: %w", err)
		}

		for _, bullet := range criterion.Bullets {
			_, err = tx.Exec(ctx,
				`INSERT INTO call_analysis_bant_bullets (criterion_id, type, text)
				 VALUES ($1, $2, $3)`,
				criterionID, bullet.Type, bullet.Text)
			if err != nil {
				return false, fmt.Errorf("insert BANT bullet: %w", err)
			}
		}
	}

	for _, block := range doc.Blocks {
		var blockID uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO call_analysis_blocks (analysis_id, block_number, title)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			analysisID, block.BlockNumber, block.Title,
		).Scan(&blockID)
		if err != nil {
			return false, fmt.Errorf("insert analysis block: %w", err)
		}

		if err := insertSectionItems(ctx, tx, blockID, "client_insights", block.Sections.ClientInsights.Items); err != nil {
			return false, err
		}
		if err := insertSectionItems(ctx, tx, blockID, "sales_good_actions", block.Sections.SalesGoodActions.Items); err != nil {
			return false, err
		}
		if err := insertSectionItems(ctx, tx, blockID, "sales_bad_actions", block.Sections.SalesBadActions.Items); err != nil {
			return false, err
		}

		for _, rec := range block.Sections.Recommendations.Items {
			var priority *string
			if rec.Priority != "" {
				priority = &rec.Priority
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO call_analysis_recommendations (block_id, text, priority)
				 VALUES ($1, $2, $3)`,
				blockID, rec.Text, priority)
			if err != nil {
				return false, fmt.Errorf("insert recommendation: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit analysis transaction: %w", err)
	}
	return true, nil
}

func insertSectionItems(ctx context.Context, tx pgx.Tx, blockID uuid.UUID, section string, items []models.EvidenceItem) error {
	for _, item := range items {
		var notes *string
		if item.Notes != "" {
			notes = &item.Notes
		}
		var itemID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO call_analysis_section_items (block_id, section, text, notes)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			blockID, section, item.Text, notes,
		).Scan(&itemID)
		if err != nil {
			return fmt.Errorf("insert %s item: %w", section, err)
		}

		for _, r := range item.TimeRanges {
			// start/end stay literal strings end to end.
			_, err = tx.Exec(ctx,
				`INSERT INTO call_analysis_time_ranges (section_item_id, start_time, end_time)
				 VALUES ($1, $2, $3)`,
				itemID, r.Start, r.End)
			if err != nil {
				return fmt.Errorf("insert time range: %w", err)
			}
		}
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
