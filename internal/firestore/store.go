// Package firestore keeps the shared ledger in a Firestore collection.
package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jask/ledgersync/internal/ledger"
	"github.com/jask/ledgersync/internal/retry"
)

// DefaultCollection holds shared ledger documents keyed by record id.
const DefaultCollection = "shared-ledger"

// Store implements the shared ledger on Firestore. Each remote call runs
// under Retry; missing documents and invalid data fail at once.
type Store struct {
	client     *firestore.Client
	collection string

	Retry  retry.Policy
	Logger *slog.Logger
}

// NewClient creates a Firestore client through a Firebase app. An empty
// credentialsFile falls back to Application Default Credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	conf := &firebase.Config{ProjectID: projectID}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// NewStore wraps client. An empty collection uses DefaultCollection.
func NewStore(client *firestore.Client, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{client: client, collection: collection, Retry: retry.DefaultPolicy()}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// do runs fn under the retry policy. Ledger errors are permanent; anything
// else is wrapped as a Firestore failure once the attempts run out.
func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, s.Retry, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && isLedgerError(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error) {
		s.logger().Warn("firestore call failed, retrying", "op", op, "attempt", attempt, "err", err)
	})
	if err != nil && !isLedgerError(err) {
		return ledger.External("firestore", fmt.Errorf("%s: %w", op, err))
	}
	return err
}

// ReadAll returns every shared record in date order. Documents that fail to
// decode are logged and returned separately.
func (s *Store) ReadAll(ctx context.Context) ([]ledger.SharedRecord, []ledger.Unreadable, error) {
	var (
		out []ledger.SharedRecord
		bad []ledger.Unreadable
	)
	err := s.do(ctx, "read "+s.collection, func(ctx context.Context) error {
		iter := s.client.Collection(s.collection).OrderBy("date", firestore.Asc).Documents(ctx)
		defer iter.Stop()
		var err error
		out, bad, err = s.collect(func() (string, func(any) error, error) {
			doc, err := iter.Next()
			if err != nil {
				return "", nil, err
			}
			return doc.Ref.ID, doc.DataTo, nil
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, bad, nil
}

// collect drains next until iterator.Done. A document that does not decode
// is skipped; an iteration error aborts.
func (s *Store) collect(next func() (id string, data func(any) error, err error)) ([]ledger.SharedRecord, []ledger.Unreadable, error) {
	var (
		out []ledger.SharedRecord
		bad []ledger.Unreadable
	)
	for {
		id, data, err := next()
		if err == iterator.Done {
			return out, bad, nil
		}
		if err != nil {
			return nil, nil, err
		}
		rec, err := decode(id, data)
		if err != nil {
			s.logger().Warn("skip unreadable shared record", "collection", s.collection, "id", id, "err", err)
			bad = append(bad, ledger.Unreadable{ID: id, Err: err})
			continue
		}
		out = append(out, rec)
	}
}

func decode(id string, data func(any) error) (ledger.SharedRecord, error) {
	var d sharedDoc
	if err := data(&d); err != nil {
		return ledger.SharedRecord{}, fmt.Errorf("failed to parse shared record %s: %w", id, err)
	}
	if d.ID == "" {
		d.ID = id
	}
	return d.record()
}

// Append creates one document per record. Creating a document that already
// exists fails rather than overwriting it.
func (s *Store) Append(ctx context.Context, recs []ledger.SharedRecord) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return ledger.Invalid("id", "shared record %q has no identifier", rec.Description)
		}
		doc := s.client.Collection(s.collection).Doc(rec.ID)
		err := s.do(ctx, "create "+rec.ID, func(ctx context.Context) error {
			_, err := doc.Create(ctx, docFrom(rec))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Update applies p inside a transaction so concurrent writers do not
// interleave between the read and the write.
func (s *Store) Update(ctx context.Context, id string, p ledger.SharedPatch) error {
	if p.IsEmpty() {
		return nil
	}
	ref := s.client.Collection(s.collection).Doc(id)
	return s.do(ctx, "update "+id, func(ctx context.Context) error {
		return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			snap, err := tx.Get(ref)
			if snap != nil && !snap.Exists() {
				return fmt.Errorf("shared record %s: %w", id, ledger.ErrNotFound)
			}
			if err != nil {
				return err
			}
			var d sharedDoc
			if err := snap.DataTo(&d); err != nil {
				return ledger.Invalid("document", "shared record %s: %v", id, err)
			}
			d.ID = id
			rec, err := d.record()
			if err != nil {
				return err
			}
			p.Apply(&rec)
			return tx.Set(ref, docFrom(rec))
		})
	})
}

func (s *Store) MarkSyncedIn(ctx context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		doc := s.client.Collection(s.collection).Doc(id)
		err := s.do(ctx, "stamp "+id, func(ctx context.Context) error {
			_, err := doc.Update(ctx, []firestore.Update{
				{Path: "lastSyncedIn", Value: at.UTC()},
				{Path: "needsSyncIn", Value: false},
			})
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
