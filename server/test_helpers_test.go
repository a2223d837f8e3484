package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"audiohub/config"
	"audiohub/model"
	"audiohub/repository"
	"audiohub/storage"

	"github.com/gorilla/mux"
)

// fakeUserRepository is an in-memory repository.UserRepository.
type fakeUserRepository struct {
	users  map[int64]*model.User
	nextID int64
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[int64]*model.User), nextID: 1}
}

func (r *fakeUserRepository) CreateUser(u *model.User) (int64, error) {
	u.ID = r.nextID
	r.nextID++
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	r.users[u.ID] = &cp
	return u.ID, nil
}

func (r *fakeUserRepository) GetUserByID(id int64) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepository) GetUserByUsername(username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepository) GetUserByEmail(email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepository) GetAllUsers() ([]*model.User, error) {
	out := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeUserRepository) UpdateUser(u *model.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	u.UpdatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepository) DeleteUser(id int64) error {
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// fakeAudioRepository is an in-memory repository.AudioFileRepository.
type fakeAudioRepository struct {
	files  map[int64]*model.AudioFile
	nextID int64
	clock  time.Time
}

func newFakeAudioRepository() *fakeAudioRepository {
	return &fakeAudioRepository{
		files:  make(map[int64]*model.AudioFile),
		nextID: 1,
		clock:  time.Now().Add(-time.Hour),
	}
}

// tick produces strictly increasing timestamps so newest-first ordering is
// deterministic in tests.
func (r *fakeAudioRepository) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeAudioRepository) CreateAudioFile(f *model.AudioFile) (int64, error) {
	f.ID = r.nextID
	r.nextID++
	now := r.tick()
	f.IsActive = true
	f.UploadedAt = now
	f.UpdatedAt = now
	cp := *f
	r.files[f.ID] = &cp
	return f.ID, nil
}

func (r *fakeAudioRepository) GetAudioFileByID(id int64) (*model.AudioFile, error) {
	f, ok := r.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeAudioRepository) sorted(filter func(*model.AudioFile) bool) []*model.AudioFile {
	out := make([]*model.AudioFile, 0)
	for _, f := range r.files {
		if filter(f) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeAudioRepository) GetActiveAudioFiles(userID int64) ([]*model.AudioFile, error) {
	return r.sorted(func(f *model.AudioFile) bool {
		return f.IsActive && (userID <= 0 || f.UserID == userID)
	}), nil
}

func (r *fakeAudioRepository) GetAudioFilesByUserID(userID int64) ([]*model.AudioFile, error) {
	return r.sorted(func(f *model.AudioFile) bool { return f.UserID == userID }), nil
}

func (r *fakeAudioRepository) UpdateAudioFile(f *model.AudioFile) error {
	existing, ok := r.files[f.ID]
	if !ok {
		return repository.ErrNotFound
	}
	f.UserID = existing.UserID // ownership column is never written
	f.UpdatedAt = r.tick()
	cp := *f
	cp.UploadedAt = existing.UploadedAt
	cp.IsActive = existing.IsActive
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeAudioRepository) SetAudioFileActive(id int64, active bool) error {
	f, ok := r.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.IsActive = active
	f.UpdatedAt = r.tick()
	return nil
}

func (r *fakeAudioRepository) DeleteAudioFile(id int64) error {
	if _, ok := r.files[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.files, id)
	return nil
}

func (r *fakeAudioRepository) CountAudioFiles() (model.AudioFileCounts, error) {
	var counts model.AudioFileCounts
	for _, f := range r.files {
		counts.Total++
		if f.IsActive {
			counts.Active++
		} else {
			counts.Inactive++
		}
	}
	return counts, nil
}

func (r *fakeAudioRepository) GetInactiveAudioFiles() ([]*model.AudioFile, error) {
	return r.sorted(func(f *model.AudioFile) bool { return !f.IsActive }), nil
}

func (r *fakeAudioRepository) ReactivateAllAudioFiles() (int64, error) {
	var n int64
	for _, f := range r.files {
		if !f.IsActive {
			f.IsActive = true
			n++
		}
	}
	return n, nil
}

// memObjectStore is an in-memory storage.ObjectStore.
type memObjectStore struct {
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (s *memObjectStore) Put(_ context.Context, objectPath string, r io.Reader, _ int64, _ string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.objects[objectPath] = data
	return int64(len(data)), nil
}

func (s *memObjectStore) Get(_ context.Context, objectPath string) (io.ReadCloser, error) {
	data, ok := s.objects[objectPath]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStore) Remove(_ context.Context, objectPath string) error {
	if _, ok := s.objects[objectPath]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, objectPath)
	return nil
}

func (s *memObjectStore) Exists(_ context.Context, objectPath string) (bool, error) {
	_, ok := s.objects[objectPath]
	return ok, nil
}

// failingObjectStore rejects every write, for storage-failure paths.
type failingObjectStore struct {
	*memObjectStore
}

func (s *failingObjectStore) Put(context.Context, string, io.Reader, int64, string) (int64, error) {
	return 0, fmt.Errorf("storage backend unavailable")
}

// testEnv bundles the fakes with a router wired like the real server.
type testEnv struct {
	userRepo  *fakeUserRepository
	audioRepo *fakeAudioRepository
	store     *memObjectStore
	handler   *APIHandler
	router    *mux.Router
}

func newTestEnv() *testEnv {
	env := &testEnv{
		userRepo:  newFakeUserRepository(),
		audioRepo: newFakeAudioRepository(),
		store:     newMemObjectStore(),
	}
	cfg := &config.Config{
		PublicBaseURL:  "http://media.test",
		AudioNamespace: "audio",
	}
	env.handler = NewAPIHandler(env.audioRepo, env.userRepo, env.store, cfg)
	env.router = newTestRouter(env.handler)
	return env
}

func newTestRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/users", h.ListUsersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users", h.CreateUserHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/users/{id}", h.GetUserHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{id}", h.UpdateUserHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/users/{id}", h.DeleteUserHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/users/{id}/audio_files", h.UserAudioFilesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audio", h.ListAudioFilesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audio", h.UploadAudioFileHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/audio/{id}", h.GetAudioFileHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audio/{id}", h.UpdateAudioFileHandler).Methods(http.MethodPut, http.MethodPatch)
	router.HandleFunc("/api/audio/{id}", h.SoftDeleteAudioFileHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/audio/{id}/hard_delete", h.HardDeleteAudioFileHandler).Methods(http.MethodDelete)
	router.PathPrefix("/media/").HandlerFunc(h.MediaHandler).Methods(http.MethodGet)
	return router
}

func (env *testEnv) addUser(username, email string) *model.User {
	u := &model.User{Username: username, Email: email}
	env.userRepo.CreateUser(u)
	return u
}

// multipartBody builds a multipart form with the given fields and an
// optional file part named audio_file.
func multipartBody(fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if filename != "" {
		part, _ := writer.CreateFormFile("audio_file", filename)
		part.Write(content)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}
