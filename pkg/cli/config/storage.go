package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"

	"github.com/m-mizutani/buildgate/pkg/domain/interfaces"
	"github.com/m-mizutani/buildgate/pkg/infra/firestore"
	"github.com/m-mizutani/buildgate/pkg/infra/gcs"
	"github.com/m-mizutani/buildgate/pkg/infra/memory"
)

// Storage holds last-built revision storage configuration
type Storage struct {
	FirestoreProjectID  string
	FirestoreDatabaseID string
	FirestoreCollection string
	CredentialsFile     string

	ArchiveBucket string
	ArchivePrefix string
}

// Flags returns CLI flags for storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project of the Firestore database. In-memory storage is used when empty",
			Destination: &c.FirestoreProjectID,
			Sources:     cli.EnvVars("BUILDGATE_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Destination: &c.FirestoreDatabaseID,
			Sources:     cli.EnvVars("BUILDGATE_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection",
			Usage:       "Firestore collection for last built revisions",
			Value:       firestore.DefaultCollection,
			Destination: &c.FirestoreCollection,
			Sources:     cli.EnvVars("BUILDGATE_FIRESTORE_COLLECTION"),
		},
		&cli.StringFlag{
			Name:        "google-credentials-file",
			Usage:       "Service account credentials file for Firestore",
			Destination: &c.CredentialsFile,
			Sources:     cli.EnvVars("BUILDGATE_GOOGLE_CREDENTIALS_FILE"),
		},
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket to archive build requests. Disabled when empty",
			Destination: &c.ArchiveBucket,
			Sources:     cli.EnvVars("BUILDGATE_ARCHIVE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix of archived build requests",
			Value:       "build-requests",
			Destination: &c.ArchivePrefix,
			Sources:     cli.EnvVars("BUILDGATE_ARCHIVE_PREFIX"),
		},
	}
}

func (c *Storage) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// Configure creates the revision store. The returned closer releases the
// underlying client and is never nil.
func (c *Storage) Configure(ctx context.Context) (interfaces.RevisionStore, func() error, error) {
	logger := ctxlog.From(ctx)

	if c.FirestoreProjectID == "" {
		logger.Warn("Firestore is not configured, last built revisions are kept in memory")
		return memory.NewRevisionStore(), func() error { return nil }, nil
	}

	store, err := firestore.New(ctx, c.FirestoreProjectID, c.FirestoreDatabaseID, c.FirestoreCollection, c.clientOptions()...)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create Firestore revision store",
			goerr.V("project_id", c.FirestoreProjectID),
			goerr.V("database_id", c.FirestoreDatabaseID))
	}

	logger.Info("Using Firestore revision store",
		slog.String("project_id", c.FirestoreProjectID),
		slog.String("database_id", c.FirestoreDatabaseID),
		slog.String("collection", c.FirestoreCollection),
	)
	return store, store.Close, nil
}

// ConfigureArchive creates the build request archive, or returns nil when no
// bucket is configured. The returned closer is never nil.
func (c *Storage) ConfigureArchive(ctx context.Context) (interfaces.BuildArchive, func() error, error) {
	if c.ArchiveBucket == "" {
		return nil, func() error { return nil }, nil
	}

	archive, err := gcs.New(ctx, c.ArchiveBucket, c.ArchivePrefix, c.clientOptions()...)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create build request archive", goerr.V("bucket", c.ArchiveBucket))
	}

	ctxlog.From(ctx).Info("Archiving build requests",
		slog.String("bucket", c.ArchiveBucket),
		slog.String("prefix", c.ArchivePrefix),
	)
	return archive, archive.Close, nil
}
