package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const sniffLen = 3072

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

type uploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

// Service stores catalog images in object storage.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
}

// UploadInput describes one image received from the admin UI.
type UploadInput struct {
	Kind        enums.MediaKind
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

// UploadOutput is returned to the caller so the URL can be attached to an item or collection.
type UploadOutput struct {
	URL         string `json:"url"`
	Object      string `json:"object"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type service struct {
	storage  uploader
	maxBytes int64
	logg     *logger.Logger
	newID    func() uuid.UUID
}

// NewService constructs a media service that enforces maxBytes per upload.
func NewService(storage uploader, maxBytes int64, logg *logger.Logger) (Service, error) {
	if storage == nil {
		return nil, fmt.Errorf("object storage required")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	return &service{storage: storage, maxBytes: maxBytes, logg: logg, newID: uuid.New}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid media kind")
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name is required")
	}
	if input.Body == nil || input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is empty")
	}
	if input.SizeBytes > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodePayloadTooLarge, fmt.Sprintf("file must be at most %d bytes", s.maxBytes))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(input.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	head = head[:n]

	contentType, err := detectImageType(head, input.ContentType)
	if err != nil {
		return nil, err
	}

	object := objectName(input.Kind, s.newID(), fileName)
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), input.Body), s.maxBytes)
	url, err := s.storage.Upload(ctx, object, contentType, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"object": object, "content_type": contentType}), "image uploaded")
	}

	return &UploadOutput{URL: url, Object: object, ContentType: contentType, SizeBytes: input.SizeBytes}, nil
}

// detectImageType sniffs the payload and rejects anything but the allowed images,
// including a declared type that disagrees with the bytes.
func detectImageType(head []byte, declared string) (string, error) {
	detected := mimetype.Detect(head)
	allowed := false
	for _, candidate := range allowedImageTypes {
		if detected.Is(candidate) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "only png, jpeg, webp and gif images are allowed").
			WithDetails(map[string]string{"detected": detected.String()})
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(detected.String(), ";")[0]))

	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if declared != "" && declared != "application/octet-stream" && !detected.Is(declared) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "content type does not match file contents").
			WithDetails(map[string]string{"declared": declared, "detected": contentType})
	}
	return contentType, nil
}

func objectName(kind enums.MediaKind, id uuid.UUID, fileName string) string {
	clean := sanitizeFileName(fileName)
	if clean == "" {
		return fmt.Sprintf("%s/%s", kind.ObjectPrefix(), id.String())
	}
	return fmt.Sprintf("%s/%s-%s", kind.ObjectPrefix(), id.String(), clean)
}

func sanitizeFileName(name string) string {
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r) || r == '?' || r == '#' || r == '%':
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
