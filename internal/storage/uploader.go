package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wisebox-backend/internal/utils"
)

const maxParallelPuts = 4

// Upload is one incoming file. Open is called at most once.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

type Stored struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	ObjectKey   string
	UploadedAt  time.Time
}

type Rejected struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Uploader validates uploads against a Policy and writes accepted files to a
// BlobStore.
type Uploader struct {
	store  BlobStore
	policy Policy
	now    func() time.Time
}

func NewUploader(store BlobStore, policy Policy) *Uploader {
	return &Uploader{store: store, policy: policy, now: time.Now}
}

func (u *Uploader) Policy() Policy {
	return u.policy
}

// Store writes the uploads under prefix. Each file is accepted or rejected on
// its own; a rejected file never affects the others. The returned error is
// only set when ctx is done.
func (u *Uploader) Store(ctx context.Context, prefix string, uploads []Upload) ([]Stored, []Rejected, error) {
	results := make([]*Stored, len(uploads))
	reasons := make([]error, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelPuts)
	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			stored, err := u.storeOne(gctx, prefix, up)
			if err != nil {
				reasons[i] = err
				return nil
			}
			results[i] = &stored
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		u.cleanup(context.WithoutCancel(ctx), results)
		return nil, nil, err
	}

	stored := make([]Stored, 0, len(uploads))
	rejected := make([]Rejected, 0)
	for i, up := range uploads {
		if results[i] != nil {
			stored = append(stored, *results[i])
			continue
		}
		rejected = append(rejected, Rejected{Name: up.Name, Reason: rejectionReason(reasons[i])})
	}
	return stored, rejected, nil
}

func (u *Uploader) storeOne(ctx context.Context, prefix string, up Upload) (Stored, error) {
	base, ext := utils.SlugifyFilename(up.Name)
	if err := u.policy.Check(ext, up.Size); err != nil {
		return Stored{}, err
	}

	rc, err := up.Open()
	if err != nil {
		return Stored{}, fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}
	contentType, err := ContentType(ext, head)
	if err != nil {
		return Stored{}, err
	}

	id := uuid.NewString()
	key := path.Join(prefix, id+"-"+base+ext)
	if err := u.store.Put(ctx, key, io.LimitReader(br, up.Size), up.Size, contentType); err != nil {
		return Stored{}, err
	}

	return Stored{
		ID:          id,
		Name:        up.Name,
		Size:        up.Size,
		ContentType: contentType,
		ObjectKey:   key,
		UploadedAt:  u.now().UTC(),
	}, nil
}

func (u *Uploader) cleanup(ctx context.Context, results []*Stored) {
	for _, s := range results {
		if s != nil {
			_ = u.store.Delete(ctx, s.ObjectKey)
		}
	}
}

// Objects lists what the store holds under prefix.
func (u *Uploader) Objects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return u.store.List(ctx, prefix)
}

// DeleteAll removes stored objects, ignoring individual failures.
func (u *Uploader) DeleteAll(ctx context.Context, keys []string) int {
	failed := 0
	for _, k := range keys {
		if err := u.store.Delete(ctx, k); err != nil {
			failed++
		}
	}
	return failed
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrExtension), errors.Is(err, ErrContentMismatch):
		return err.Error()
	default:
		return "upload failed"
	}
}
