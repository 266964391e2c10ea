package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/leakage-detector/internal/logger"
)

// Upload copies both run artifacts to a GCS bucket under prefix. It assumes
// Application Default Credentials are configured.
func Upload(ctx context.Context, bucket, prefix string, arts Artifacts) error {
	log := logger.FromContext(ctx)

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	for _, local := range []string{arts.FlaggedCSV, arts.SummaryJSON} {
		object := path.Join(prefix, path.Base(local))
		if err := uploadObject(ctx, client, bucket, object, local); err != nil {
			return err
		}
		log.Info().Str("bucket", bucket).Str("object", object).Msg("artifact uploaded")
	}
	return nil
}

func uploadObject(ctx context.Context, client *storage.Client, bucket, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open artifact %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy artifact to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", object, err)
	}
	return nil
}
