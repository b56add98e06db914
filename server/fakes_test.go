package server

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"audiovault/model"
	"audiovault/repository"
	"audiovault/storage"
)

type memAudioRepo struct {
	mu     sync.Mutex
	audios map[string]model.Audio
}

func newMemAudioRepo() *memAudioRepo {
	return &memAudioRepo{audios: make(map[string]model.Audio)}
}

func (r *memAudioRepo) Create(_ context.Context, a *model.Audio) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	a.Description, a.Category = upd.Description, upd.Category
	a.UpdatedAt = time.Now().UTC()
	r.audios[id] = a
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

type memUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]model.User)}
}

func (r *memUserRepo) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) find(match func(model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.ID == id })
}

func (r *memUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Username == username })
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.find(func(u model.User) bool { return u.Email == email })
}

func (r *memUserRepo) UpdateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return nil
	}
	for id, existing := range r.users {
		if id != u.ID && (existing.Username == u.Username || existing.Email == u.Email) {
			return repository.ErrDuplicateUser
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) DeleteUser(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevocations) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]bool)
	}
	m.revoked[tokenID] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenID], nil
}

var errBlobRead = errors.New("blob read failed")

// faultyBlobs 包装真实存储；cutAfter >= 0 时读到该字节数后出错或挂起，并记录 Close
type faultyBlobs struct {
	storage.BlobStore
	cutAfter atomic.Int64
	stall    atomic.Bool
	closed   chan struct{}
}

func newFaultyBlobs(inner storage.BlobStore) *faultyBlobs {
	f := &faultyBlobs{BlobStore: inner, closed: make(chan struct{}, 16)}
	f.cutAfter.Store(-1)
	return f
}

func (f *faultyBlobs) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	rc, err := f.BlobStore.Get(ctx, key, offset, length)
	if err != nil {
		return nil, err
	}
	return &faultyReader{ctx: ctx, inner: rc, owner: f, cutAfter: f.cutAfter.Load(), stall: f.stall.Load()}, nil
}

type faultyReader struct {
	ctx      context.Context
	inner    io.ReadCloser
	owner    *faultyBlobs
	cutAfter int64
	stall    bool
	read     int64
}

func (r *faultyReader) Read(p []byte) (int, error) {
	if r.cutAfter >= 0 {
		remaining := r.cutAfter - r.read
		if remaining <= 0 {
			if r.stall {
				<-r.ctx.Done()
				return 0, r.ctx.Err()
			}
			return 0, errBlobRead
		}
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
	}
	n, err := r.inner.Read(p)
	r.read += int64(n)
	return n, err
}

func (r *faultyReader) Close() error {
	err := r.inner.Close()
	select {
	case r.owner.closed <- struct{}{}:
	default:
	}
	return err
}
