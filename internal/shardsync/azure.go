package shardsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

// AzureBlobs implements Blobs on Azure Blob Storage with a shared key.
// Endpoints given over plain HTTP (a local Azurite) are allowed.
type AzureBlobs struct {
	client     *azblob.Client
	serviceURL string
	logger     *zap.Logger
	created    map[string]bool
}

// NewAzureBlobs creates a client from a standard storage connection string.
func NewAzureBlobs(connectionString string, logger *zap.Logger) (*AzureBlobs, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	params := parseConnectionString(connectionString)
	accountName := params["AccountName"]
	accountKey := params["AccountKey"]
	serviceURL := params["BlobEndpoint"]
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and key are required in the connection string")
	}
	if serviceURL == "" {
		suffix := params["EndpointSuffix"]
		if suffix == "" {
			suffix = "core.windows.net"
		}
		serviceURL = fmt.Sprintf("https://%s.blob.%s", accountName, suffix)
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	var clientOpts *azblob.ClientOptions
	if strings.HasPrefix(strings.ToLower(serviceURL), "http://") {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				InsecureAllowCredentialWithHTTP: true,
			},
		}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &AzureBlobs{
		client:     client,
		serviceURL: strings.TrimRight(serviceURL, "/"),
		logger:     logger,
		created:    make(map[string]bool),
	}, nil
}

// Upload stores the file at path as container/name with the given metadata.
func (a *AzureBlobs) Upload(ctx context.Context, container, name, path string, metadata map[string]string) (string, error) {
	if err := a.ensureContainer(ctx, container); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	meta := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		meta[k] = to.Ptr(v)
	}

	if _, err := a.client.UploadFile(ctx, container, name, f, &azblob.UploadFileOptions{Metadata: meta}); err != nil {
		a.logger.Error("blob upload failed",
			zap.String("container", container),
			zap.String("blob", name),
			zap.Error(err))
		return "", fmt.Errorf("upload blob %s/%s: %w", container, name, err)
	}
	return fmt.Sprintf("%s/%s/%s", a.serviceURL, container, name), nil
}

// Download writes container/name into the file at path, which it creates.
func (a *AzureBlobs) Download(ctx context.Context, container, name, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := a.client.DownloadFile(ctx, container, name, f, nil)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("download blob %s/%s: %w", container, name, err)
	}
	return n, nil
}

func (a *AzureBlobs) ensureContainer(ctx context.Context, container string) error {
	if a.created[container] {
		return nil
	}

	_, err := a.client.CreateContainer(ctx, container, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "ContainerAlreadyExists" {
			return fmt.Errorf("ensure container %s: %w", container, err)
		}
	}
	a.created[container] = true
	return nil
}

func parseConnectionString(connectionString string) map[string]string {
	parts := strings.Split(connectionString, ";")
	params := make(map[string]string, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			continue
		}
		params[key] = value
	}
	return params
}
