// Package images uploads product photos to Cloudinary.
package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gabriel-vasile/mimetype"
)

const (
	MaxUploadBytes = 8 << 20
	sniffLen       = 3072
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrInvalidURL      = errors.New("not a cloudinary asset url")
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

type Uploader interface {
	Upload(ctx context.Context, r io.Reader, publicID string) (string, error)
	Delete(ctx context.Context, assetURL string) error
}

// Sniff detects the content type from the first bytes of r and returns a
// reader that still yields the whole stream.
func Sniff(r io.Reader) (io.Reader, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	for _, allowed := range allowedTypes {
		if mt.Is(allowed) {
			return io.MultiReader(bytes.NewReader(head), r), allowed, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
}

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cloudinaryURL, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, publicID string) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:    c.folder,
		PublicID:  publicID,
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, assetURL string) error {
	publicID, err := PublicIDFromURL(assetURL)
	if err != nil {
		return err
	}
	if _, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("cloudinary delete: %w", err)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts "folder/name" from
// https://res.cloudinary.com/<cloud>/image/upload/v123/folder/name.jpg.
func PublicIDFromURL(assetURL string) (string, error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part != "upload" || i+1 >= len(parts) {
			continue
		}
		rest := parts[i+1:]
		if versionSegment.MatchString(rest[0]) {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			break
		}
		id := strings.Join(rest, "/")
		return strings.TrimSuffix(id, path.Ext(id)), nil
	}
	return "", ErrInvalidURL
}
