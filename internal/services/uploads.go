package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/AnshRaj112/moodiary-backend/internal/apperr"
)

// MaxUploadSize is the largest image or drawing accepted, 5 MiB.
const MaxUploadSize = 5 << 20

// AllowedImageTypes are the content types accepted for entry images.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

const pngDataURLPrefix = "data:image/png;base64,"

// UploadService validates entry images and drawings and hands them to storage.
// Files land under images/{userID}/{entryID}/ and drawings/{userID}/{entryID}.
type UploadService struct {
	Storage FileStorage
}

func NewUploadService(storage FileStorage) *UploadService {
	return &UploadService{Storage: storage}
}

// CheckImage returns the sniffed content type of data, or a validation error
// when it is too large or not an allowed image type.
func CheckImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &apperr.ValidationError{Messages: []string{"File is empty"}}
	}
	if len(data) > MaxUploadSize {
		return "", &apperr.ValidationError{Messages: []string{"File size must be less than 5MB"}}
	}
	ct := http.DetectContentType(data)
	for _, allowed := range AllowedImageTypes {
		if ct == allowed {
			return ct, nil
		}
	}
	return "", &apperr.ValidationError{Messages: []string{
		"File type not allowed. Allowed types: " + strings.Join(AllowedImageTypes, ", "),
	}}
}

// UploadImage stores an entry image and returns its URL.
func (s *UploadService) UploadImage(ctx context.Context, userID, entryID, filename string, data []byte) (string, error) {
	if err := checkPathSegment(entryID); err != nil {
		return "", err
	}
	if _, err := CheckImage(data); err != nil {
		return "", err
	}

	name := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	name = sanitizeName(name)
	publicID := fmt.Sprintf("images/%s/%s/%s-%s", userID, entryID, uuid.NewString()[:8], name)
	return s.Storage.Upload(ctx, data, publicID)
}

// UploadDrawing stores the PNG in a base64 data URL as the entry's drawing,
// replacing any previous one.
func (s *UploadService) UploadDrawing(ctx context.Context, userID, entryID, dataURL string) (string, error) {
	if err := checkPathSegment(entryID); err != nil {
		return "", err
	}
	data, err := DecodePNGDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if ct, err := CheckImage(data); err != nil {
		return "", err
	} else if ct != "image/png" {
		return "", &apperr.ValidationError{Messages: []string{"Drawing must be a PNG image"}}
	}

	return s.Storage.Upload(ctx, data, fmt.Sprintf("drawings/%s/%s", userID, entryID))
}

// DecodePNGDataURL decodes a "data:image/png;base64," URL.
func DecodePNGDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return nil, &apperr.ValidationError{Messages: []string{"Drawing must be a PNG data URL"}}
	}
	encoded := dataURL[len(pngDataURLPrefix):]
	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxUploadSize+3 {
		return nil, &apperr.ValidationError{Messages: []string{"File size must be less than 5MB"}}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &apperr.ValidationError{Messages: []string{"Drawing data is not valid base64"}}
	}
	return data, nil
}

func checkPathSegment(s string) error {
	if s == "" || len(s) > 64 {
		return &apperr.ValidationError{Messages: []string{"Entry id is invalid"}}
	}
	for _, c := range s {
		if !isNameRune(c) {
			return &apperr.ValidationError{Messages: []string{"Entry id is invalid"}}
		}
	}
	return nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		if isNameRune(c) {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || out == "_" {
		return "image"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

func isNameRune(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}
