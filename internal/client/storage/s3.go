// Package storage lists the releases the backend has published to object
// storage. It talks to S3 directly with the operator's own credentials, so a
// submission can be confirmed independently of the backend's reply.
//
// Objects are expected under "<prefix><version>/<file>", for example
// "RZG2L_Release-1.4.0/update.raucb".
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/otaverifier/internal/client/models"
	"github.com/dmitrijs2005/otaverifier/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) s3.ListObjectsV2APIClient {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

var ErrBucketRequired = errors.New("bucket is required")

type ReleaseStore struct {
	endpoint string
	prefix   string
}

// NewReleaseStore returns a store rooted at prefix. A blank endpoint uses the
// AWS default resolver; otherwise path-style requests go to endpoint (MinIO
// and similar).
func NewReleaseStore(endpoint, prefix string) *ReleaseStore {
	return &ReleaseStore{endpoint: endpoint, prefix: prefix}
}

func (s *ReleaseStore) client(ctx context.Context, creds models.Credentials, st models.Storage) (s3.ListObjectsV2APIClient, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds.AccessKey,
			creds.SecretKey,
			creds.SessionToken,
		)),
	}
	if st.Region != "" {
		opts = append(opts, config.WithRegion(st.Region))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3Client(cfg, func(o *s3.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ListReleases returns every release under the prefix in st.Bucket, sorted
// by version string.
func (s *ReleaseStore) ListReleases(ctx context.Context, creds models.Credentials, st models.Storage) ([]models.Release, error) {
	return s.list(ctx, creds, st, s.prefix)
}

// FindRelease returns the objects stored for version, or common.ErrNotFound.
func (s *ReleaseStore) FindRelease(ctx context.Context, creds models.Credentials, st models.Storage, version string) (*models.Release, error) {
	releases, err := s.list(ctx, creds, st, s.prefix+version+"/")
	if err != nil {
		return nil, err
	}
	for i := range releases {
		if releases[i].Version == version {
			return &releases[i], nil
		}
	}
	return nil, common.ErrNotFound
}

func (s *ReleaseStore) list(ctx context.Context, creds models.Credentials, st models.Storage, prefix string) ([]models.Release, error) {
	if strings.TrimSpace(st.Bucket) == "" {
		return nil, ErrBucketRequired
	}

	c, err := s.client(ctx, creds, st)
	if err != nil {
		return nil, err
	}

	byVersion := map[string][]string{}
	p := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{
		Bucket: aws.String(st.Bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", st.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			version, name, ok := s.splitKey(aws.ToString(obj.Key))
			if !ok {
				continue
			}
			byVersion[version] = append(byVersion[version], name)
		}
	}

	releases := make([]models.Release, 0, len(byVersion))
	for v, objs := range byVersion {
		sort.Strings(objs)
		releases = append(releases, models.Release{Version: v, Objects: objs})
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].Version < releases[j].Version })
	return releases, nil
}

// splitKey parses "<prefix><version>/<name>".
func (s *ReleaseStore) splitKey(key string) (version, name string, ok bool) {
	rest, found := strings.CutPrefix(key, s.prefix)
	if !found {
		return "", "", false
	}
	version, name, found = strings.Cut(rest, "/")
	if !found || version == "" || name == "" {
		return "", "", false
	}
	return version, name, true
}
