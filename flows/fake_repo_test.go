package flows

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

type statKey struct {
	userID     int64
	categoryID int64
}

// fakeRepo is an in-memory Repository for engine tests.
type fakeRepo struct {
	users      map[int64]storage.User
	settings   map[int64]storage.UserSettings
	levels     []storage.Level
	categories []storage.Category
	pools      map[int64][]int64
	exercises  map[int64]storage.ExerciseDetail
	created    []storage.ExerciseDraft
	stats      map[statKey]*storage.CategoryStat
	codes      map[string]bool
	err        error
	touchErr   error
	recordErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:    make(map[int64]storage.User),
		settings: make(map[int64]storage.UserSettings),
		levels: []storage.Level{
			{ID: 1, Name: "A2"}, {ID: 2, Name: "B1"}, {ID: 3, Name: "B2"},
			{ID: 4, Name: "C1"}, {ID: 5, Name: "C2"},
		},
		categories: []storage.Category{
			{ID: 1, Name: "Präpositionen"}, {ID: 2, Name: "Verben"},
		},
		pools:     make(map[int64][]int64),
		exercises: make(map[int64]storage.ExerciseDetail),
		stats:     make(map[statKey]*storage.CategoryStat),
		codes:     make(map[string]bool),
	}
}

// seedExercises adds n exercises to the given level and category.
func (f *fakeRepo) seedExercises(levelID, categoryID int64, n int) {
	for i := 0; i < n; i++ {
		id := int64(len(f.exercises) + 1)
		f.exercises[id] = storage.ExerciseDetail{
			Exercise: storage.Exercise{
				ID:          id,
				Sentence:    fmt.Sprintf("Satz %03d mit %s Lücke.", id, BlankMarker),
				Explanation: fmt.Sprintf("Erklärung %d", id),
				CategoryID:  categoryID,
			},
			CategoryName: "Präpositionen",
			Correct:      fmt.Sprintf("richtig-%d", id),
			Incorrect:    []string{fmt.Sprintf("falsch-%d-a", id), fmt.Sprintf("falsch-%d-b", id)},
			Levels:       []storage.Level{{ID: levelID}},
		}
		f.pools[levelID] = append(f.pools[levelID], id)
	}
}

func (f *fakeRepo) EnsureUser(_ context.Context, id int64, username string) (storage.User, error) {
	if f.err != nil {
		return storage.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		u = storage.User{ID: id, Username: username, Role: storage.RoleUser}
		f.users[id] = u
	}
	return u, nil
}

func (f *fakeRepo) UserByID(_ context.Context, id int64) (storage.User, error) {
	if f.err != nil {
		return storage.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) SettingsByUser(_ context.Context, userID int64) (storage.UserSettings, error) {
	if f.err != nil {
		return storage.UserSettings{}, f.err
	}
	s, ok := f.settings[userID]
	if !ok {
		return storage.UserSettings{UserID: userID}, nil
	}
	return s, nil
}

func (f *fakeRepo) SaveSettings(_ context.Context, s storage.UserSettings) error {
	if f.err != nil {
		return f.err
	}
	f.settings[s.UserID] = s
	return nil
}

func (f *fakeRepo) Levels(_ context.Context) ([]storage.Level, error) {
	return f.levels, f.err
}

func (f *fakeRepo) Categories(_ context.Context) ([]storage.Category, error) {
	return f.categories, f.err
}

func (f *fakeRepo) CountExercisesForLevel(_ context.Context, levelID int64) (int, error) {
	return len(f.pools[levelID]), f.err
}

func (f *fakeRepo) ExerciseIDsForLevel(_ context.Context, levelID int64) ([]int64, error) {
	return f.pools[levelID], f.err
}

func (f *fakeRepo) ExerciseDetail(_ context.Context, id int64) (storage.ExerciseDetail, error) {
	if f.err != nil {
		return storage.ExerciseDetail{}, f.err
	}
	d, ok := f.exercises[id]
	if !ok {
		return storage.ExerciseDetail{}, storage.ErrNotFound
	}
	return d, nil
}

func (f *fakeRepo) ExercisesPage(_ context.Context, offset, limit int) ([]storage.Exercise, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	all := make([]storage.Exercise, 0, len(f.exercises))
	for _, d := range f.exercises {
		all = append(all, d.Exercise)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Sentence < all[j].Sentence })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRepo) CreateExercise(_ context.Context, draft storage.ExerciseDraft) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.created = append(f.created, draft)
	return int64(len(f.created)), nil
}

func (f *fakeRepo) TouchCategoryStat(_ context.Context, userID, categoryID int64) error {
	if f.err != nil {
		return f.err
	}
	if f.touchErr != nil {
		return f.touchErr
	}
	f.stat(userID, categoryID).Total++
	return nil
}

func (f *fakeRepo) RecordCorrectAnswer(_ context.Context, userID, categoryID int64) error {
	if f.err != nil {
		return f.err
	}
	if f.recordErr != nil {
		return f.recordErr
	}
	f.stat(userID, categoryID).Correct++
	return nil
}

func (f *fakeRepo) stat(userID, categoryID int64) *storage.CategoryStat {
	key := statKey{userID, categoryID}
	s, ok := f.stats[key]
	if !ok {
		s = &storage.CategoryStat{CategoryID: categoryID}
		f.stats[key] = s
	}
	return s
}

func (f *fakeRepo) CategoryStats(_ context.Context, userID int64) ([]storage.CategoryStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []storage.CategoryStat
	for key, s := range f.stats {
		if key.userID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (f *fakeRepo) InsertAccessCodes(_ context.Context, codes []string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	inserted := 0
	for _, c := range codes {
		if !f.codes[c] {
			f.codes[c] = true
			inserted++
		}
	}
	return inserted, nil
}

// fixture wires an Engine over fakes with a deterministic selector.
func fixture() (*Engine, *fakeRepo, *session.MemoryStore) {
	repo := newFakeRepo()
	store := session.NewMemoryStore()
	engine := NewEngine(repo, store, training.NewSelector(rand.NewSource(1)))
	return engine, repo, store
}

func addEditor(repo *fakeRepo, id int64) {
	repo.users[id] = storage.User{ID: id, Username: "editor", Role: storage.RoleEditor}
}

func addUser(repo *fakeRepo, id int64) {
	repo.users[id] = storage.User{ID: id, Username: "user", Role: storage.RoleUser}
}
