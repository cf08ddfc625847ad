package gcs

import (
	"context"
	"encoding/json"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"

	"github.com/m-mizutani/buildgate/pkg/domain/model"
)

// Archive writes build requests as JSON objects to a Cloud Storage bucket.
// Object names are <prefix>/<owner>/<repo>/<yyyy>/<mm>/<dd>/<request id>.json.
type Archive struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a Cloud Storage build request archive
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Archive, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	return &Archive{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close closes the underlying client
func (a *Archive) Close() error {
	return a.client.Close()
}

// ObjectName returns the object name of req
func ObjectName(prefix string, req *model.BuildRequest) string {
	t := req.RequestedAt.UTC()
	return path.Join(prefix, req.Repository, t.Format("2006/01/02"), req.ID+".json")
}

// PutBuildRequest stores req
func (a *Archive) PutBuildRequest(ctx context.Context, req *model.BuildRequest) error {
	name := ObjectName(a.prefix, req)

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if err := json.NewEncoder(w).Encode(req); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write build request",
			goerr.V("bucket", a.bucket),
			goerr.V("object", name))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to store build request",
			goerr.V("bucket", a.bucket),
			goerr.V("object", name))
	}
	return nil
}
