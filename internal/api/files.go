package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/metrics"
)

const (
	formFieldFile        = "file"
	formFieldFilename    = "filename"
	formFieldContentType = "contentType"

	// multipartOverhead is headroom for form boundaries and fields on top of the file size ceiling.
	multipartOverhead int64 = 1 << 20

	cacheControlImmutable = "public, max-age=31536000, immutable"
)

// FileUploadRequest represents the incoming multipart upload.
type FileUploadRequest struct {
	RawBody multipart.Form
}

// FileUploadResponse represents the wrapped API response for an upload.
type FileUploadResponse struct {
	Body struct {
		Success bool       `json:"success"`
		Data    FileUpload `json:"data"`
	}
}

// FileDeleteRequest identifies the file to delete.
type FileDeleteRequest struct {
	Key string `doc:"Storage key returned by the upload" query:"key"`
}

// FileKeyRequest identifies the file to serve.
type FileKeyRequest struct {
	Key string `doc:"Storage key returned by the upload" path:"key"`
}

// RegisterFileRoutes sets up file upload and serving endpoints.
func RegisterFileRoutes(
	routerAPI huma.API,
	logger hclog.Logger,
	store contracts.FileStorage,
	maxFileSize int64,
	apiPathPrefix string,
) {
	filesAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Files"}

	huma.Register(
		filesAPI,
		huma.Operation{
			OperationID:  "uploadFile",
			Method:       http.MethodPost,
			Summary:      "Upload a file",
			Tags:         tags,
			MaxBodyBytes: maxFileSize + multipartOverhead,
		},
		func(ctx context.Context, input *FileUploadRequest) (*FileUploadResponse, error) {
			resp, err := handleUploadFile(ctx, store, maxFileSize, &input.RawBody)
			metrics.RecordFileOperation(metrics.FileUpload, err == nil)
			return resp, err
		},
	)

	huma.Register(
		filesAPI,
		huma.Operation{
			OperationID: "deleteFile",
			Method:      http.MethodDelete,
			Summary:     "Delete a file",
			Tags:        tags,
		},
		func(ctx context.Context, input *FileDeleteRequest) (*SuccessResponse, error) {
			resp, err := handleDeleteFile(ctx, store, input.Key)
			metrics.RecordFileOperation(metrics.FileDelete, err == nil)
			return resp, err
		},
	)

	huma.Register(
		filesAPI,
		huma.Operation{
			OperationID: "getFile",
			Method:      http.MethodGet,
			Path:        "/{key}",
			Summary:     "Serve a file",
			Tags:        tags,
		},
		func(ctx context.Context, input *FileKeyRequest) (*huma.StreamResponse, error) {
			resp, err := handleGetFile(ctx, logger, store, input.Key)
			metrics.RecordFileOperation(metrics.FileDownload, err == nil)
			return resp, err
		},
	)
}

func handleUploadFile(
	ctx context.Context,
	store contracts.FileStorage,
	maxFileSize int64,
	form *multipart.Form,
) (*FileUploadResponse, error) {
	headers := form.File[formFieldFile]
	if len(headers) == 0 || headers[0] == nil {
		return nil, fmt.Errorf("%w: no file provided", errors.ErrBadRequest)
	}
	fh := headers[0]

	if fh.Size > maxFileSize {
		return nil, fmt.Errorf("%w: maximum size is %s", errors.ErrFileTooLarge, humanize.IBytes(uint64(maxFileSize)))
	}

	filename := formValue(form, formFieldFilename)
	if filename == "" {
		filename = fh.Filename
	}
	contentType := formValue(form, formFieldContentType)
	if contentType == "" {
		contentType = fh.Header.Get("Content-Type")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	defer func() { _ = f.Close() }()

	res, err := store.Upload(ctx, f, domain.UploadOptions{
		Filename:    filename,
		ContentType: contentType,
		Size:        fh.Size,
	})
	if err != nil {
		return nil, err
	}

	data, err := DomainUploadResult(res).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &FileUploadResponse{}
	resp.Body.Success = true
	resp.Body.Data = data

	return resp, nil
}

func handleDeleteFile(ctx context.Context, store contracts.FileStorage, key string) (*SuccessResponse, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: file key is required", errors.ErrBadRequest)
	}

	if err := store.Delete(ctx, key); err != nil {
		return nil, err
	}

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}

// handleGetFile resolves the file before streaming so that lookup failures still map to error responses.
func handleGetFile(
	ctx context.Context,
	logger hclog.Logger,
	store contracts.FileStorage,
	key string,
) (*huma.StreamResponse, error) {
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileNotFound, key)
	}

	meta, err := store.Metadata(ctx, key)
	if err != nil {
		return nil, err
	}

	rc, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer func() { _ = rc.Close() }()

			hctx.SetHeader("Content-Type", meta.ContentType)
			hctx.SetHeader("Content-Length", strconv.FormatInt(meta.Size, 10))
			hctx.SetHeader("Content-Disposition", contentDisposition(meta.Filename))
			hctx.SetHeader("Cache-Control", cacheControlImmutable)
			hctx.SetStatus(http.StatusOK)

			if _, err := io.Copy(hctx.BodyWriter(), rc); err != nil {
				logger.Warn("File stream interrupted", "key", key, "error", err)
			}
		},
	}, nil
}

func contentDisposition(filename string) string {
	filename = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(filename)
	return fmt.Sprintf(`inline; filename="%s"`, filename)
}

func formValue(form *multipart.Form, name string) string {
	if vals := form.Value[name]; len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
