package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-entitlements/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const executionRecordsTable = "entitlement_execution_records"

type ExecutionRecordStore struct {
	db   *bun.DB
	repo repository.Repository[*executionRecordRow]
	now  func() time.Time
}

func NewExecutionRecordStore(db *bun.DB) (*ExecutionRecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*executionRecordRow](db, executionRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid execution record repository wiring: %w", err)
		}
	}
	return &ExecutionRecordStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ExecutionRecordStore) Record(ctx context.Context, record core.ExecutionRecord) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: execution record store is not configured")
	}
	executionID := strings.TrimSpace(record.ExecutionID)
	if executionID == "" {
		return fmt.Errorf("sqlstore: execution record requires execution_id")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := record.CreatedAt.UTC()
	if record.CreatedAt.IsZero() {
		createdAt = s.now()
	}
	level := strings.TrimSpace(string(record.Level))
	if level == "" {
		level = string(core.ExecutionLevelInfo)
	}

	_, err := s.repo.Create(ctx, &executionRecordRow{
		ID:          id,
		ExecutionID: executionID,
		Task:        strings.TrimSpace(record.Task),
		Level:       level,
		Domain:      strings.TrimSpace(record.Domain),
		Action:      strings.TrimSpace(record.Action),
		Status:      strings.TrimSpace(record.Status),
		ResourceID:  strings.TrimSpace(record.ResourceID),
		Message:     record.Message,
		Body:        record.Body,
		Error:       record.Error,
		CreatedAt:   createdAt,
	})
	return err
}

func (s *ExecutionRecordStore) List(ctx context.Context, filter core.ExecutionRecordFilter) (core.ExecutionRecordPage, error) {
	if s == nil || s.repo == nil {
		return core.ExecutionRecordPage{}, fmt.Errorf("sqlstore: execution record store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if value := strings.TrimSpace(filter.ExecutionID); value != "" {
		selectors = append(selectors, repository.SelectBy("execution_id", "=", value))
	}
	if value := strings.TrimSpace(filter.Task); value != "" {
		selectors = append(selectors, repository.SelectBy("task", "=", value))
	}
	if value := strings.TrimSpace(string(filter.Level)); value != "" {
		selectors = append(selectors, repository.SelectBy("level", "=", value))
	}
	if value := strings.TrimSpace(filter.Domain); value != "" {
		selectors = append(selectors, repository.SelectBy("domain", "=", value))
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", value))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	rows, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ExecutionRecordPage{}, err
	}
	items := make([]core.ExecutionRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, executionRecordToDomain(row))
	}
	hasNext := offset+len(items) < total
	next := ""
	if hasNext {
		next = strconv.Itoa(offset + len(items))
	}
	return core.ExecutionRecordPage{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		HasNext:    hasNext,
		NextCursor: next,
	}, nil
}

// Prune applies the TTL bound first, then trims the oldest rows above RowCap.
func (s *ExecutionRecordStore) Prune(ctx context.Context, policy core.RecordRetentionPolicy) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: execution record store is not configured")
	}
	deleted := 0

	if policy.TTL > 0 {
		cutoff := s.now().Add(-policy.TTL)
		res, err := s.db.NewDelete().
			Model((*executionRecordRow)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if policy.RowCap > 0 {
		total, err := s.db.NewSelect().Model((*executionRecordRow)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		if excess := total - policy.RowCap; excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM "+executionRecordsTable+" WHERE id IN (SELECT id FROM "+executionRecordsTable+" ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

func executionRecordToDomain(row *executionRecordRow) core.ExecutionRecord {
	if row == nil {
		return core.ExecutionRecord{}
	}
	return core.ExecutionRecord{
		ID:          row.ID,
		ExecutionID: row.ExecutionID,
		Task:        row.Task,
		Level:       core.ExecutionLevel(row.Level),
		Domain:      row.Domain,
		Action:      row.Action,
		Status:      row.Status,
		ResourceID:  row.ResourceID,
		Message:     row.Message,
		Body:        row.Body,
		Error:       row.Error,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}
