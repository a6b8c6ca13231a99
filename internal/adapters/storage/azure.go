package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/jobrunner/tarantula/internal/ports/output"
)

// AzureStorage implements ObjectStorage for an Azure Blob Storage container.
type AzureStorage struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzureStorage creates a new Azure Blob Storage adapter. A connection
// string takes precedence over the account name and key.
func NewAzureStorage(cfg AzureConfig) (*AzureStorage, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating azure client: %w", err)
	}

	return &AzureStorage{
		client:    client,
		container: cfg.Container,
		prefix:    strings.TrimSuffix(cfg.Prefix, "/"),
	}, nil
}

func newAzureClient(cfg AzureConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
	return azblob.NewClientWithSharedKeyCredential(url, cred, nil)
}

// List pages through the blobs below each district prefix.
func (s *AzureStorage) List(ctx context.Context, districts []string) ([]output.StorageObject, error) {
	prefixes := []string{s.fullKey("")}
	if len(districts) > 0 {
		prefixes = prefixes[:0]
		for _, d := range districts {
			prefixes = append(prefixes, s.fullKey(d+"/"))
		}
	}

	var objects []output.StorageObject
	for _, prefix := range prefixes {
		pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
			Prefix: &prefix,
		})

		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing container %s/%s: %w", s.container, prefix, err)
			}

			for _, blob := range page.Segment.BlobItems {
				if blob.Name == nil {
					continue
				}
				key := strings.TrimPrefix(strings.TrimPrefix(*blob.Name, s.prefix), "/")
				if !inDistricts(key, districts) {
					continue
				}
				objects = append(objects, blobObject(key, blob.Properties))
			}
		}
	}

	return objects, nil
}

func blobObject(key string, props *container.BlobProperties) output.StorageObject {
	obj := output.StorageObject{Key: key}
	if props == nil {
		return obj
	}
	if props.ContentLength != nil {
		obj.Size = *props.ContentLength
	}
	if props.LastModified != nil {
		obj.LastModified = props.LastModified.Unix()
	}
	if props.ETag != nil {
		obj.ETag = strings.Trim(string(*props.ETag), "\"")
	}
	return obj
}

// Download streams a blob into dest.
func (s *AzureStorage) Download(ctx context.Context, key string, dest string) error {
	resp, err := s.client.DownloadStream(ctx, s.container, s.fullKey(key), nil)
	if err != nil {
		return fmt.Errorf("downloading %s/%s: %w", s.container, s.fullKey(key), err)
	}
	defer func() { _ = resp.Body.Close() }()

	return writeFile(dest, resp.Body)
}

func (s *AzureStorage) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
