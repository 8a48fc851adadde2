package firestore

import (
	"context"
	"errors"
	"fmt"

	"guidedesk/internal/repositories/interfaces"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type documentStore struct {
	client *firestore.Client
}

func NewDocumentStore(ctx context.Context, app *firebase.App) (interfaces.DocumentStore, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}

	return &documentStore{client: client}, nil
}

// NewDocumentStoreFromClient wraps an existing client, e.g. one pointed at the
// emulator.
func NewDocumentStoreFromClient(client *firestore.Client) interfaces.DocumentStore {
	return &documentStore{client: client}
}

func (s *documentStore) Name() string {
	return "firestore"
}

func (s *documentStore) Listen(ctx context.Context, query interfaces.Query, onSnapshot interfaces.SnapshotFunc, onError interfaces.ErrorFunc) (interfaces.Listener, error) {
	if len(query.In) == 0 {
		return nil, fmt.Errorf("query on %s has no filter values", query.Collection)
	}

	q := s.client.Collection(query.Collection).Query
	if len(query.In) == 1 {
		q = q.Where(query.Field, "==", query.In[0])
	} else {
		q = q.Where(query.Field, "in", query.In)
	}

	dir := firestore.Asc
	if query.Descending {
		dir = firestore.Desc
	}
	q = q.OrderBy(query.OrderBy, dir)

	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)
	l := &listener{iter: it, cancel: cancel}

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				// Stop cancels ctx; that is not a failure worth reporting.
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(fmt.Errorf("failed to read snapshot documents: %w", err))
				}
				return
			}

			out := make([]interfaces.Document, 0, len(docs))
			for _, d := range docs {
				out = append(out, interfaces.Document{ID: d.Ref.ID, Data: normalize(d.Data())})
			}
			onSnapshot(out)
		}
	}()

	return l, nil
}

func (s *documentStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}, pre *interfaces.Precondition) error {
	ref := s.client.Collection(collection).Doc(id)

	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}

	if pre == nil {
		_, err := ref.Update(ctx, updates)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s/%s: %w", collection, id, interfaces.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
		}
		return nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound || (snap != nil && !snap.Exists()) {
			return interfaces.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !pre.Satisfied(snap.Data()) {
			return interfaces.ErrConflict
		}
		return tx.Update(ref, updates)
	})
	switch {
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, interfaces.ErrConflict):
		return fmt.Errorf("%s/%s: %w", collection, id, err)
	case err != nil:
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *documentStore) Close() error {
	return s.client.Close()
}

type listener struct {
	iter   *firestore.QuerySnapshotIterator
	cancel context.CancelFunc
}

func (l *listener) Stop() {
	l.cancel()
}

// normalize turns firestore-specific values into the plain types the mapping
// layer understands.
func normalize(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case *latlng.LatLng:
		if val == nil {
			return nil
		}
		return map[string]interface{}{
			"latitude":  val.GetLatitude(),
			"longitude": val.GetLongitude(),
		}
	case map[string]interface{}:
		return normalize(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	}
	return v
}
