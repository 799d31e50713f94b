// internal/app/store/users/airtable.go
package userstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/normalize"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/mehanizm/airtable"
)

// Airtable field names.
const (
	fieldEmail        = "email"
	fieldUsername     = "username"
	fieldPasswordHash = "passwordHash"
	fieldLog          = "log"
)

// AirtableStore keeps users as rows of an Airtable table.
//
// Airtable has no unique constraints or conditional writes, so uniqueness is
// best-effort: Create does not look the email up again and relies on the
// caller's lookup, and two concurrent registrations for the same email can
// both succeed.
type AirtableStore struct {
	table *airtable.Table
}

// NewAirtableStore creates an AirtableStore on baseID/tableName.
func NewAirtableStore(client *airtable.Client, baseID, tableName string) *AirtableStore {
	return &AirtableStore{table: client.GetTable(baseID, tableName)}
}

// NewAirtableClient creates an Airtable client. baseURL overrides the API
// endpoint when non-empty.
func NewAirtableClient(apiKey, baseURL string) (*airtable.Client, error) {
	client := airtable.NewClient(apiKey)
	if baseURL != "" {
		if err := client.SetBaseURL(baseURL); err != nil {
			return nil, fmt.Errorf("airtable base url: %w", err)
		}
	}
	return client, nil
}

// emailFormula builds the lookup formula for email. The value is quoted as
// an Airtable string literal.
func emailFormula(email string) string {
	lit := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(normalize.Email(email))
	return fmt.Sprintf("LOWER({%s}) = '%s'", fieldEmail, lit)
}

// FindByEmail implements Store.
func (s *AirtableStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	recs, err := s.table.GetRecords().
		WithFilterFormula(emailFormula(email)).
		MaxRecords(1).
		DoContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("airtable lookup: %w", err)
	}
	if recs == nil || len(recs.Records) == 0 {
		return nil, ErrNotFound
	}
	return recordToUser(recs.Records[0]), nil
}

// Create implements Store.
func (s *AirtableStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	fields := map[string]any{
		fieldEmail:        u.Email,
		fieldPasswordHash: u.PasswordHash,
		fieldLog:          u.Log,
	}
	if u.Username != "" {
		fields[fieldUsername] = u.Username
	}
	out, err := s.table.AddRecordsContext(ctx, &airtable.Records{
		Records:  []*airtable.Record{{Fields: fields}},
		Typecast: true,
	})
	if err != nil {
		return nil, fmt.Errorf("airtable create: %w", err)
	}
	if out == nil || len(out.Records) == 0 {
		return nil, fmt.Errorf("airtable create: no record returned")
	}
	created := recordToUser(out.Records[0])
	if created.CreatedAt.IsZero() {
		created.CreatedAt = u.CreatedAt
	}
	return created, nil
}

func (s *AirtableStore) patch(ctx context.Context, id string, fields map[string]any) error {
	_, err := s.table.UpdateRecordsPartialContext(ctx, &airtable.Records{
		Records: []*airtable.Record{{ID: id, Fields: fields}},
	})
	if err != nil {
		return fmt.Errorf("airtable update %s: %w", id, err)
	}
	return nil
}

// UpdateLog implements Store.
func (s *AirtableStore) UpdateLog(ctx context.Context, id, log string) error {
	return s.patch(ctx, id, map[string]any{fieldLog: log})
}

// UpdatePasswordHash implements Store.
func (s *AirtableStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.patch(ctx, id, map[string]any{fieldPasswordHash: hash})
}

// Ping implements Store by reading at most one row.
func (s *AirtableStore) Ping(ctx context.Context) error {
	if _, err := s.table.GetRecords().MaxRecords(1).DoContext(ctx); err != nil {
		return fmt.Errorf("airtable ping: %w", err)
	}
	return nil
}

func recordToUser(r *airtable.Record) *models.User {
	u := &models.User{
		ID:           r.ID,
		Email:        stringField(r.Fields, fieldEmail),
		Username:     stringField(r.Fields, fieldUsername),
		PasswordHash: stringField(r.Fields, fieldPasswordHash),
		Log:          stringField(r.Fields, fieldLog),
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedTime); err == nil {
		u.CreatedAt = t
	}
	return u
}

func stringField(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}
