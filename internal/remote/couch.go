package remote

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/Olooce/ledgerly/internal/ledger"
)

// Store talks to a CouchDB database holding all synced documents for every
// owner. Documents are scoped per owner by the owner_id field; queries always
// filter on it.
type Store struct {
	client *kivik.Client
	dbName string
	logger *log.Logger
}

// Dial connects to CouchDB and returns a Store for the named database.
//
// If logger is nil, a default logger writing to stderr is used.
func Dial(url, dbName string, logger *log.Logger) (*Store, error) {
	client, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}
	return NewStore(client, dbName, logger), nil
}

// NewStore wraps an existing kivik client.
func NewStore(client *kivik.Client, dbName string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	return &Store{client: client, dbName: dbName, logger: logger}
}

// Init creates the database and its query index if they don't exist.
// Idempotent - safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	exists, err := s.client.DBExists(ctx, s.dbName)
	if err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if !exists {
		if err := s.client.CreateDB(ctx, s.dbName); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		s.logger.Printf("Created database %s", s.dbName)
	}

	db := s.client.DB(s.dbName)
	index := map[string]any{
		"fields": []string{"collection", "owner_id", "is_deleted", "last_modified"},
	}
	if err := db.CreateIndex(ctx, "", "by-owner", index); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// MergeUpsert writes a document by its key, merging field-by-field into any
// existing revision so concurrent writers of disjoint fields don't clobber
// each other.
func (s *Store) MergeUpsert(ctx context.Context, collection ledger.Kind, doc Document) error {
	db := s.client.DB(s.dbName)

	var existing map[string]any
	row := db.Get(ctx, doc.ID)
	err := row.ScanDoc(&existing)
	switch {
	case err == nil:
		existingDeleted, _ := existing["is_deleted"].(bool)
		existingModified := asInt64(existing["last_modified"])
		// A tombstone at least as new as the incoming write stands: a stale
		// live row from a device that hasn't pulled yet must not revive a
		// deleted document.
		if existingDeleted && !doc.IsDeleted && existingModified >= doc.LastModified {
			return nil
		}
		// Same version stamp means same content; rewriting it would only
		// churn revisions.
		if existingDeleted == doc.IsDeleted && existingModified == doc.LastModified {
			return nil
		}
		merged := existing
		merged["collection"] = doc.Collection
		merged["owner_id"] = doc.OwnerID
		merged["device_id"] = doc.DeviceID
		merged["key"] = doc.Key
		merged["is_deleted"] = doc.IsDeleted
		merged["last_modified"] = doc.LastModified
		fields, _ := merged["fields"].(map[string]any)
		if fields == nil {
			fields = make(map[string]any, len(doc.Fields))
		}
		for k, v := range doc.Fields {
			fields[k] = v
		}
		merged["fields"] = fields
		if _, err := db.Put(ctx, doc.ID, merged); err != nil {
			return fmt.Errorf("failed to update document %s: %w", doc.ID, err)
		}
	case kivik.HTTPStatus(err) == http.StatusNotFound:
		if _, err := db.Put(ctx, doc.ID, doc); err != nil {
			return fmt.Errorf("failed to create document %s: %w", doc.ID, err)
		}
	default:
		return fmt.Errorf("failed to fetch document %s: %w", doc.ID, err)
	}
	return nil
}

// QueryByOwner returns every document of one collection belonging to the owner,
// tombstoned or not.
func (s *Store) QueryByOwner(ctx context.Context, collection ledger.Kind, ownerID string) ([]Document, error) {
	selector := map[string]any{
		"selector": map[string]any{
			"collection": string(collection),
			"owner_id":   ownerID,
		},
	}
	return s.find(ctx, selector)
}

// TombstonesOlderThan returns refs for the owner's tombstoned documents in one
// collection whose last-modified timestamp is before the cutoff.
func (s *Store) TombstonesOlderThan(ctx context.Context, collection ledger.Kind, ownerID string, cutoff int64) ([]Ref, error) {
	selector := map[string]any{
		"selector": map[string]any{
			"collection":    string(collection),
			"owner_id":      ownerID,
			"is_deleted":    true,
			"last_modified": map[string]any{"$lt": cutoff},
		},
	}
	docs, err := s.find(ctx, selector)
	if err != nil {
		return nil, err
	}
	refs := make([]Ref, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, Ref{ID: d.ID, Rev: d.Rev})
	}
	return refs, nil
}

// BatchDelete removes the referenced documents in one bulk commit.
// A no-op when refs is empty.
func (s *Store) BatchDelete(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}

	docs := make([]any, 0, len(refs))
	for _, ref := range refs {
		docs = append(docs, map[string]any{
			"_id":      ref.ID,
			"_rev":     ref.Rev,
			"_deleted": true,
		})
	}

	db := s.client.DB(s.dbName)
	results, err := db.BulkDocs(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to batch delete %d documents: %w", len(refs), err)
	}
	for _, res := range results {
		if res.Error != nil {
			return fmt.Errorf("failed to delete document %s: %w", res.ID, res.Error)
		}
	}
	return nil
}

// asInt64 reads a timestamp out of a decoded JSON document, where numbers
// arrive as float64.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func (s *Store) find(ctx context.Context, query map[string]any) ([]Document, error) {
	db := s.client.DB(s.dbName)

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}
