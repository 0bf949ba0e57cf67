package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"alfredoptarigan/rubric-evaluator/internal/errs"
	"alfredoptarigan/rubric-evaluator/internal/metrics"
)

type ObjectLocation struct {
	Bucket string
	Key    string
}

func (l ObjectLocation) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

type DocumentLocator interface {
	ResolveReference(ref string) (ObjectLocation, error)
	FetchBytes(ctx context.Context, ref string) ([]byte, error)
	Describe(ctx context.Context, ref string) (*ObjectInfo, error)
}

var (
	// bucket.s3.amazonaws.com, bucket.s3.<region>.amazonaws.com, bucket.s3-<region>.amazonaws.com
	virtualHostedHost = regexp.MustCompile(`^([a-z0-9](?:[a-z0-9.\-]*[a-z0-9])?)\.s3(?:[.\-]([a-z0-9\-]+))?\.amazonaws\.com$`)
	// s3.<region>.amazonaws.com, s3-<region>.amazonaws.com
	pathStyleHost = regexp.MustCompile(`^s3(?:[.\-]([a-z0-9\-]+))?\.amazonaws\.com$`)
)

type documentLocator struct {
	storage ObjectStorage
	maxSize int64
	// localRoot as configured (absolute) and with symlinks resolved.
	localRoot string
	realRoot  string
}

// NewDocumentLocator builds a locator over object storage. Local references
// are served only from inside localRoot; an empty localRoot rejects them.
func NewDocumentLocator(storage ObjectStorage, maxSize int64, localRoot string) DocumentLocator {
	d := &documentLocator{storage: storage, maxSize: documentLimit(maxSize)}
	if localRoot != "" {
		d.localRoot, d.realRoot = rootPaths(localRoot)
	}
	return d
}

// ResolveReference parses the accepted object-storage reference forms into
// a bucket and key.
func (d *documentLocator) ResolveReference(ref string) (ObjectLocation, error) {
	return ParseObjectReference(ref)
}

func ParseObjectReference(ref string) (ObjectLocation, error) {
	invalid := func() (ObjectLocation, error) {
		return ObjectLocation{}, fmt.Errorf("%q: %w", ref, errs.ErrInvalidReference)
	}

	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return invalid()
	}

	var loc ObjectLocation
	switch strings.ToLower(u.Scheme) {
	case "s3":
		loc.Bucket = u.Host
		loc.Key = strings.TrimPrefix(u.Path, "/")
	case "https", "http":
		host := strings.ToLower(u.Hostname())
		if m := virtualHostedHost.FindStringSubmatch(host); m != nil && m[1] != "s3" {
			loc.Bucket = m[1]
			loc.Key = strings.TrimPrefix(u.Path, "/")
		} else if pathStyleHost.MatchString(host) {
			bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
			if !ok {
				return invalid()
			}
			loc.Bucket = bucket
			loc.Key = key
		} else {
			return invalid()
		}
	default:
		return invalid()
	}

	if loc.Bucket == "" || loc.Key == "" {
		return invalid()
	}
	return loc, nil
}

// FetchBytes loads a document from object storage or the local filesystem
// and checks size and PDF signature.
func (d *documentLocator) FetchBytes(ctx context.Context, ref string) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	if isLocalReference(ref) {
		data, err = d.readLocal(ref)
	} else {
		loc, rerr := d.ResolveReference(ref)
		if rerr != nil {
			return nil, rerr
		}
		if d.storage == nil {
			return nil, fmt.Errorf("object storage is not configured: %w", errs.ErrInvalidReference)
		}
		data, err = d.storage.Get(ctx, loc.Bucket, loc.Key, d.maxSize)
	}
	if err != nil {
		return nil, err
	}

	metrics.DocumentBytes.Observe(float64(len(data)))

	if err := ValidatePDF(data, d.maxSize); err != nil {
		return nil, err
	}
	return data, nil
}

// Describe probes an object without downloading it. A missing object is not an error.
func (d *documentLocator) Describe(ctx context.Context, ref string) (*ObjectInfo, error) {
	if isLocalReference(ref) {
		path, err := d.confinedPath(ref)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return &ObjectInfo{Exists: false}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", ref, err)
		}
		return &ObjectInfo{
			Exists:       true,
			Size:         st.Size(),
			ContentType:  "application/pdf",
			LastModified: st.ModTime(),
		}, nil
	}

	loc, err := d.ResolveReference(ref)
	if err != nil {
		return nil, err
	}
	if d.storage == nil {
		return nil, fmt.Errorf("object storage is not configured: %w", errs.ErrInvalidReference)
	}
	return d.storage.Head(ctx, loc.Bucket, loc.Key)
}

func (d *documentLocator) readLocal(ref string) ([]byte, error) {
	path, err := d.confinedPath(ref)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file %s: %w", path, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if st.Size() > d.maxSize {
		return nil, fmt.Errorf("file %s is %d bytes, limit is %d: %w", path, st.Size(), d.maxSize, errs.ErrPayloadTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func isLocalReference(ref string) bool {
	if strings.HasPrefix(ref, "file://") {
		return true
	}
	return !strings.Contains(ref, "://")
}

// confinedPath maps a local reference onto a path under the local root.
// Relative references are taken relative to the root. Anything that leaves
// the root, lexically or through a symlink, is an invalid reference.
func (d *documentLocator) confinedPath(ref string) (string, error) {
	if d.localRoot == "" {
		return "", fmt.Errorf("local references are disabled: %w", errs.ErrInvalidReference)
	}

	path := strings.TrimPrefix(ref, "file://")
	if path == "" {
		return "", fmt.Errorf("%q: %w", ref, errs.ErrInvalidReference)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.localRoot, path)
	}
	path = filepath.Clean(path)
	if !within(d.localRoot, path) && !within(d.realRoot, path) {
		return "", fmt.Errorf("%q is outside the document root: %w", ref, errs.ErrInvalidReference)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !within(d.realRoot, resolved) {
		return "", fmt.Errorf("%q is outside the document root: %w", ref, errs.ErrInvalidReference)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func rootPaths(root string) (abs, resolved string) {
	abs = filepath.Clean(root)
	if a, err := filepath.Abs(root); err == nil {
		abs = a
	}
	resolved = abs
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		resolved = r
	}
	return abs, resolved
}
