// Package firestore adapts the Firestore REST API to the document-store
// ports. The settlement lives in a single document and monthly records in
// their own collection, one document per YYYY-MM key.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"jeongsan/internal/core"
	"jeongsan/internal/store"

	gfirestore "google.golang.org/api/firestore/v1"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

const (
	// DefaultSettlementCollection holds the single settlement document.
	DefaultSettlementCollection = "settlements"
	// DefaultSettlementDoc is the id of the single settlement document.
	DefaultSettlementDoc = "default"
	// DefaultRecordsCollection holds one document per saved month.
	DefaultRecordsCollection = "monthly-records"
	// DefaultDatabaseID is Firestore's default database name.
	DefaultDatabaseID = "(default)"
)

// Config selects the project, database and collections the client talks
// to. Credentials resolve from CredentialsJSON, CredentialsFile, or the
// GOOGLE_APPLICATION_CREDENTIALS environment variable, in that order.
type Config struct {
	ProjectID            string
	DatabaseID           string
	SettlementCollection string
	SettlementDoc        string
	RecordsCollection    string
	CredentialsJSON      string
	CredentialsFile      string
}

type Client struct {
	docs                 *gfirestore.ProjectsDatabasesDocumentsService
	root                 string // projects/<p>/databases/<db>/documents
	database             string // projects/<p>/databases/<db>
	settlementCollection string
	settlementDoc        string
	recordsCollection    string
}

var _ store.DocumentStore = (*Client)(nil)

// New creates a Firestore-backed document store.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("missing firestore project id")
	}
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = DefaultDatabaseID
	}
	if cfg.SettlementCollection == "" {
		cfg.SettlementCollection = DefaultSettlementCollection
	}
	if cfg.SettlementDoc == "" {
		cfg.SettlementDoc = DefaultSettlementDoc
	}
	if cfg.RecordsCollection == "" {
		cfg.RecordsCollection = DefaultRecordsCollection
	}

	svc, err := newFirestoreService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("firestore service: %w", err)
	}

	database := fmt.Sprintf("projects/%s/databases/%s", cfg.ProjectID, cfg.DatabaseID)
	return &Client{
		docs:                 svc.Projects.Databases.Documents,
		root:                 database + "/documents",
		database:             database,
		settlementCollection: cfg.SettlementCollection,
		settlementDoc:        cfg.SettlementDoc,
		recordsCollection:    cfg.RecordsCollection,
	}, nil
}

// newFirestoreService initializes the REST service with service-account
// credentials, falling back to application default credentials.
func newFirestoreService(ctx context.Context, cfg Config) (*gfirestore.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(credentialsJSON) == 0 && strings.TrimSpace(cfg.CredentialsFile) != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentialsJSON = data
	}

	opts := []goption.ClientOption{goption.WithScopes(gfirestore.DatastoreScope)}
	if len(credentialsJSON) > 0 {
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
		slog.InfoContext(ctx, "Using inline service account credentials", "size", len(credentialsJSON))
	} else {
		slog.InfoContext(ctx, "Using application default credentials")
	}

	return gfirestore.NewService(ctx, opts...)
}

func (c *Client) settlementName() string {
	return fmt.Sprintf("%s/%s/%s", c.root, c.settlementCollection, c.settlementDoc)
}

func (c *Client) recordName(yearMonth string) string {
	return fmt.Sprintf("%s/%s/%s", c.root, c.recordsCollection, yearMonth)
}

// GetSettlement fetches the settlement document and decodes its item
// lists. Fields the document does not carry decode to empty lists.
func (c *Client) GetSettlement(ctx context.Context) (core.Ledger, error) {
	doc, err := c.docs.Get(c.settlementName()).Context(ctx).Do()
	if err != nil {
		return core.Ledger{}, c.mapError("get settlement", err)
	}
	return ledgerFromFields(doc.Fields), nil
}

// PutSettlement writes the item lists with a field mask so unrelated
// fields on the document are preserved, and stamps lastUpdated with the
// server's own clock in the same commit.
func (c *Client) PutSettlement(ctx context.Context, ledger core.Ledger) error {
	write := &gfirestore.Write{
		Update: &gfirestore.Document{
			Name:   c.settlementName(),
			Fields: ledgerToFields(ledger),
		},
		UpdateMask: &gfirestore.DocumentMask{
			FieldPaths: []string{"mine", "siblings"},
		},
		UpdateTransforms: []*gfirestore.FieldTransform{
			{FieldPath: "lastUpdated", SetToServerValue: "REQUEST_TIME"},
		},
	}
	req := &gfirestore.CommitRequest{Writes: []*gfirestore.Write{write}}
	if _, err := c.docs.Commit(c.database, req).Context(ctx).Do(); err != nil {
		return c.mapError("put settlement", err)
	}
	return nil
}

// GetRecord fetches one monthly record document.
func (c *Client) GetRecord(ctx context.Context, yearMonth string) (core.MonthlyRecord, error) {
	doc, err := c.docs.Get(c.recordName(yearMonth)).Context(ctx).Do()
	if err != nil {
		return core.MonthlyRecord{}, c.mapError("get record", err)
	}
	return recordFromFields(doc.Fields), nil
}

// PutRecord creates or fully overwrites the record for its month.
func (c *Client) PutRecord(ctx context.Context, record core.MonthlyRecord) error {
	if err := core.ValidateYearMonth(record.YearMonth); err != nil {
		return err
	}
	write := &gfirestore.Write{
		Update: &gfirestore.Document{
			Name:   c.recordName(record.YearMonth),
			Fields: recordToFields(record),
		},
		UpdateTransforms: []*gfirestore.FieldTransform{
			{FieldPath: "lastUpdated", SetToServerValue: "REQUEST_TIME"},
		},
	}
	req := &gfirestore.CommitRequest{Writes: []*gfirestore.Write{write}}
	if _, err := c.docs.Commit(c.database, req).Context(ctx).Do(); err != nil {
		return c.mapError("put record", err)
	}
	return nil
}

// ListRecords pages through the records collection and decodes every
// document. Order is left to the caller.
func (c *Client) ListRecords(ctx context.Context) ([]core.MonthlyRecord, error) {
	var out []core.MonthlyRecord
	call := c.docs.List(c.root, c.recordsCollection).PageSize(100)
	err := call.Pages(ctx, func(resp *gfirestore.ListDocumentsResponse) error {
		for _, doc := range resp.Documents {
			out = append(out, recordFromFields(doc.Fields))
		}
		return nil
	})
	if err != nil {
		return nil, c.mapError("list records", err)
	}
	return out, nil
}

// Ping issues a minimal read of the settlement document. A not-found
// answer still proves the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docs.Get(c.settlementName()).MaskFieldPaths("lastUpdated").Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("firestore ping: %w", err)
}

func (c *Client) mapError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, store.ErrNotFound)
	}
	return fmt.Errorf("firestore %s: %w", op, err)
}
