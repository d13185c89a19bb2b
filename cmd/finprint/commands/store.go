package commands

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wildseas/finprint/pkg/storage"
)

// resolveStore turns a --store spec into a FileStore.
//
//	""                     no store (indexes stay in memory)
//	s3://bucket[/prefix]   S3 with credentials from the environment
//	anything else          local directory
func resolveStore(ctx context.Context, spec string) (storage.FileStore, error) {
	if spec == "" {
		return nil, nil
	}
	if rest, ok := strings.CutPrefix(spec, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("store %q names no bucket", spec)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return storage.NewS3(s3.NewFromConfig(awsCfg), bucket, prefix), nil
	}
	return storage.NewLocal(spec)
}
