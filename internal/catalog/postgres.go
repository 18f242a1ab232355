package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/store"
)

type sectionRow struct {
	ID                      uuid.UUID      `db:"id"`
	Title                   string         `db:"title"`
	Description             string         `db:"description"`
	OrderIndex              int            `db:"order_index"`
	IsActive                bool           `db:"is_active"`
	VisibleBeforeAcceptance bool           `db:"visible_before_acceptance"`
	ShowWhenStatus          sql.NullString `db:"show_when_status"`
}

type questionRow struct {
	ID              uuid.UUID      `db:"id"`
	SectionID       uuid.UUID      `db:"section_id"`
	Text            string         `db:"question_text"`
	Type            string         `db:"question_type"`
	Options         []byte         `db:"options"`
	IsRequired      bool           `db:"is_required"`
	IsActive        bool           `db:"is_active"`
	OrderIndex      int            `db:"order_index"`
	HelpText        string         `db:"help_text"`
	Placeholder     string         `db:"placeholder"`
	ValidationRules []byte         `db:"validation_rules"`
	ShowIfQuestion  uuid.NullUUID  `db:"show_if_question_id"`
	ShowIfAnswer    sql.NullString `db:"show_if_answer"`
	ShowWhenStatus  sql.NullString `db:"show_when_status"`
}

// PostgresProvider reads the catalog from the application_sections and
// application_questions tables.
type PostgresProvider struct {
	db *sqlx.DB
}

func NewPostgresProvider(db *sqlx.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

func (p *PostgresProvider) Sections(ctx context.Context) ([]models.Section, error) {
	var sectionRows []sectionRow
	err := p.db.SelectContext(ctx, &sectionRows, `
		SELECT id, title, description, order_index, is_active, visible_before_acceptance, show_when_status
		FROM application_sections ORDER BY order_index, id`)
	if err != nil {
		return nil, store.TranslateError(err)
	}

	var questionRows []questionRow
	err = p.db.SelectContext(ctx, &questionRows, `
		SELECT id, section_id, question_text, question_type, options, is_required, is_active,
			order_index, help_text, placeholder, validation_rules, show_if_question_id,
			show_if_answer, show_when_status
		FROM application_questions ORDER BY section_id, order_index, id`)
	if err != nil {
		return nil, store.TranslateError(err)
	}

	questions := map[uuid.UUID][]models.Question{}
	for _, r := range questionRows {
		q, err := r.toModel()
		if err != nil {
			return nil, err
		}
		questions[q.SectionID] = append(questions[q.SectionID], q)
	}

	sections := make([]models.Section, 0, len(sectionRows))
	for _, r := range sectionRows {
		s := models.Section{
			ID:                      r.ID,
			Title:                   r.Title,
			Description:             r.Description,
			OrderIndex:              r.OrderIndex,
			IsActive:                r.IsActive,
			VisibleBeforeAcceptance: r.VisibleBeforeAcceptance,
			ShowWhenStatus:          nullStatus(r.ShowWhenStatus),
			Questions:               questions[r.ID],
		}
		if s.Questions == nil {
			s.Questions = []models.Question{}
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func (r questionRow) toModel() (models.Question, error) {
	q := models.Question{
		ID:             r.ID,
		SectionID:      r.SectionID,
		Text:           r.Text,
		Type:           models.QuestionType(r.Type),
		IsRequired:     r.IsRequired,
		IsActive:       r.IsActive,
		OrderIndex:     r.OrderIndex,
		HelpText:       r.HelpText,
		Placeholder:    r.Placeholder,
		ShowWhenStatus: nullStatus(r.ShowWhenStatus),
	}
	if len(r.Options) > 0 {
		if err := json.Unmarshal(r.Options, &q.Options); err != nil {
			return q, fmt.Errorf("question %s: bad options: %w", r.ID, err)
		}
	}
	if len(r.ValidationRules) > 0 {
		if err := json.Unmarshal(r.ValidationRules, &q.ValidationRules); err != nil {
			return q, fmt.Errorf("question %s: bad validation_rules: %w", r.ID, err)
		}
	}
	if r.ShowIfQuestion.Valid {
		id := r.ShowIfQuestion.UUID
		q.ShowIfQuestion = &id
	}
	if r.ShowIfAnswer.Valid {
		answer := r.ShowIfAnswer.String
		q.ShowIfAnswer = &answer
	}
	return q, nil
}

func nullStatus(s sql.NullString) *models.ApplicationStatus {
	if !s.Valid {
		return nil
	}
	status := models.ApplicationStatus(s.String)
	return &status
}

// Replace makes the stored catalog match sections. Rows are upserted so existing
// answers keep their question; questions and sections missing from the new
// catalog are deactivated, never deleted.
func (p *PostgresProvider) Replace(ctx context.Context, sections []models.Section) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sectionIDs, questionIDs := pq.StringArray{}, pq.StringArray{}
	for _, s := range sections {
		sectionIDs = append(sectionIDs, s.ID.String())
		if err = upsertSection(ctx, tx, s); err != nil {
			return err
		}
		for _, q := range s.Questions {
			questionIDs = append(questionIDs, q.ID.String())
			if err = upsertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE application_questions SET is_active = FALSE WHERE NOT (id = ANY($1::uuid[]))`, questionIDs); err != nil {
		return store.TranslateError(err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE application_sections SET is_active = FALSE WHERE NOT (id = ANY($1::uuid[]))`, sectionIDs); err != nil {
		return store.TranslateError(err)
	}

	return store.TranslateError(tx.Commit())
}

func upsertSection(ctx context.Context, tx *sqlx.Tx, s models.Section) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO application_sections (id, title, description, order_index, is_active, visible_before_acceptance, show_when_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			order_index = EXCLUDED.order_index,
			is_active = EXCLUDED.is_active,
			visible_before_acceptance = EXCLUDED.visible_before_acceptance,
			show_when_status = EXCLUDED.show_when_status`,
		s.ID, s.Title, s.Description, s.OrderIndex, s.IsActive, s.VisibleBeforeAcceptance, statusValue(s.ShowWhenStatus))
	return store.TranslateError(err)
}

func upsertQuestion(ctx context.Context, tx *sqlx.Tx, q models.Question) error {
	options, err := json.Marshal(nonNil(q.Options))
	if err != nil {
		return err
	}
	rules, err := json.Marshal(nonNil(q.ValidationRules))
	if err != nil {
		return err
	}

	var showIf uuid.NullUUID
	if q.ShowIfQuestion != nil {
		showIf = uuid.NullUUID{UUID: *q.ShowIfQuestion, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO application_questions (id, section_id, question_text, question_type, options, is_required,
			is_active, order_index, help_text, placeholder, validation_rules, show_if_question_id,
			show_if_answer, show_when_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			section_id = EXCLUDED.section_id,
			question_text = EXCLUDED.question_text,
			question_type = EXCLUDED.question_type,
			options = EXCLUDED.options,
			is_required = EXCLUDED.is_required,
			is_active = EXCLUDED.is_active,
			order_index = EXCLUDED.order_index,
			help_text = EXCLUDED.help_text,
			placeholder = EXCLUDED.placeholder,
			validation_rules = EXCLUDED.validation_rules,
			show_if_question_id = EXCLUDED.show_if_question_id,
			show_if_answer = EXCLUDED.show_if_answer,
			show_when_status = EXCLUDED.show_when_status`,
		q.ID, q.SectionID, q.Text, string(q.Type), string(options), q.IsRequired, q.IsActive, q.OrderIndex,
		q.HelpText, q.Placeholder, string(rules), showIf, q.ShowIfAnswer, statusValue(q.ShowWhenStatus))
	return store.TranslateError(err)
}

func statusValue(s *models.ApplicationStatus) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
