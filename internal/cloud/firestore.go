package cloud

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"rotinas/internal/cloudsync"
)

const usersCollection = "users"

// Store keeps each user's collections under users/{uid}/{collection} in Firestore.
type Store struct {
	client *firestore.Client
	log    *zap.Logger
}

func NewStore(ctx context.Context, app *firebase.App, log *zap.Logger) (*Store, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, log: log.Named("firestore")}, nil
}

func (s *Store) collection(userID, name string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(name)
}

// Put overwrites every document in docs.
func (s *Store) Put(ctx context.Context, userID, collection string, docs []cloudsync.Document) error {
	col := s.collection(userID, collection)
	writer := s.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		job, err := writer.Set(col.Doc(doc.ID), doc.Data)
		if err != nil {
			writer.End()
			return fmt.Errorf("queue %s/%s: %w", collection, doc.ID, err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, fmt.Errorf("write %s/%s: %w", collection, docs[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Fetch(ctx context.Context, userID, collection string) ([]cloudsync.Document, error) {
	snaps, err := s.collection(userID, collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	docs := make([]cloudsync.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, cloudsync.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *Store) Delete(ctx context.Context, userID, collection, id string) error {
	if _, err := s.collection(userID, collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Listen streams added and modified documents to fn until ctx is done. The
// first snapshot delivers the whole collection.
func (s *Store) Listen(ctx context.Context, userID, collection string, fn func([]cloudsync.Document)) error {
	it := s.collection(userID, collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return nil
			}
			return fmt.Errorf("listen %s: %w", collection, err)
		}

		var docs []cloudsync.Document
		for _, change := range snap.Changes {
			if change.Kind == firestore.DocumentRemoved {
				continue
			}
			docs = append(docs, cloudsync.Document{ID: change.Doc.Ref.ID, Data: change.Doc.Data()})
		}
		if len(docs) == 0 {
			continue
		}
		s.log.Debug("remote change", zap.String("collection", collection), zap.String("user_id", userID), zap.Int("count", len(docs)))
		fn(docs)
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}
