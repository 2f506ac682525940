// SPDX-License-Identifier: MPL-2.0

package kb

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxRemoteSize bounds how much of a remote knowledge base is read.
const maxRemoteSize = 5 * 1024 * 1024

// ObjectGetter is the subset of the S3 client used to fetch a knowledge base.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// IsRemote reports whether location names an S3 object.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// LoadS3 fetches and decodes a knowledge base stored at s3://bucket/key.
func LoadS3(ctx context.Context, client ObjectGetter, location string) (*Table, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
		return nil, fmt.Errorf("invalid knowledge base location %q: want s3://bucket/key", location)
	}
	key := strings.TrimPrefix(u.Path, "/")
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch knowledge base %s: %w", location, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxRemoteSize+1))
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", location, err)
	}
	if len(data) > maxRemoteSize {
		return nil, fmt.Errorf("knowledge base %s exceeds %d bytes", location, maxRemoteSize)
	}
	return Decode(location, path.Base(key), data)
}

// Load resolves a knowledge-base location: empty means the built-in table,
// s3:// URLs are fetched with the default AWS credential chain, and anything
// else is a local file.
func Load(ctx context.Context, location string) (*Table, error) {
	switch {
	case location == "":
		return Default()
	case IsRemote(location):
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return LoadS3(ctx, s3.NewFromConfig(cfg), location)
	default:
		return LoadFile(location)
	}
}
