package audio

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"audiovault/model"
	"audiovault/storage"
)

// memAudioRepo 内存版 AudioRepository
type memAudioRepo struct {
	mu        sync.Mutex
	audios    map[string]model.Audio
	createErr error
	updates   int
}

func newMemAudioRepo() *memAudioRepo {
	return &memAudioRepo{audios: make(map[string]model.Audio)}
}

func (r *memAudioRepo) Create(_ context.Context, a *model.Audio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.audios[a.ID] = *a
	return nil
}

func (r *memAudioRepo) ListByUser(_ context.Context, userID int64) ([]*model.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Audio, 0)
	for _, a := range r.audios {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memAudioRepo) GetByIDAndUser(_ context.Context, id string, userID int64) (*model.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.audios[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return &a, nil
}

func (r *memAudioRepo) UpdateDetails(_ context.Context, id string, userID int64, upd model.AudioUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.audios[id]
	if !ok || a.UserID != userID {
		return false, nil
	}
	a.Description = upd.Description
	a.Category = upd.Category
	a.UpdatedAt = time.Now().UTC()
	r.audios[id] = a
	r.updates++
	return true, nil
}

func (r *memAudioRepo) DeleteByIDAndUser(_ context.Context, id string, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.audios[id]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(r.audios, id)
	return true, nil
}

func (r *memAudioRepo) ExistsByStorageKey(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.audios {
		if a.StorageKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAudioRepo) countUpdates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *memAudioRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.audios)
}

// flakyBlobs 包装真实存储，按需注入失败
type flakyBlobs struct {
	storage.BlobStore
	putErr    error
	deleteErr error
}

func (f *flakyBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	return f.BlobStore.Put(ctx, key, r, size, ct)
}

func (f *flakyBlobs) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.BlobStore.Delete(ctx, key)
}

var errBoom = errors.New("boom")
