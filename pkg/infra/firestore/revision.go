package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// DefaultCollection stores one document per head
const DefaultCollection = "last_built_revisions"

// RevisionStore keeps last built revisions in Firestore
type RevisionStore struct {
	client     *firestore.Client
	collection string
}

var _ interfaces.RevisionStore = (*RevisionStore)(nil)

// New connects to a Firestore database. An empty collection means DefaultCollection.
func New(ctx context.Context, projectID, databaseID, collection string, opts ...option.ClientOption) (*RevisionStore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}

	return &RevisionStore{
		client:     client,
		collection: collection,
	}, nil
}

// Close releases the Firestore client
func (s *RevisionStore) Close() error {
	return s.client.Close()
}

func (s *RevisionStore) GetLastBuilt(ctx context.Context, key model.HeadKey) (model.Revision, error) {
	doc, err := s.client.Collection(s.collection).Doc(key.ID()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get last built revision", goerr.V("key", key.String()))
	}

	var record model.RevisionRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, goerr.Wrap(err, "failed to decode revision record", goerr.V("key", key.String()))
	}

	return record.Revision()
}

func (s *RevisionStore) PutLastBuilt(ctx context.Context, key model.HeadKey, rev model.Revision) error {
	record, err := model.NewRevisionRecord(rev)
	if err != nil {
		return err
	}
	record.UpdatedAt = time.Now().UTC()

	if _, err := s.client.Collection(s.collection).Doc(key.ID()).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to put last built revision", goerr.V("key", key.String()))
	}
	return nil
}
