package service

import (
	"articlehub/internal/article/model"
	"articlehub/internal/article/repository"
	usermodel "articlehub/internal/user/model"
	userrepository "articlehub/internal/user/repository"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeArticles struct {
	mu       sync.Mutex
	rows     map[string]*model.Article
	lastPage *model.PageQuery

	// afterFind runs after a successful FindByUUID, standing in for a concurrent writer.
	afterFind func(uuid string)
}

func clone(a *model.Article) *model.Article {
	c := *a
	c.Tags = append([]string(nil), a.Tags...)
	return &c
}

func (f *fakeArticles) put(a *model.Article) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.UUID] = clone(a)
}

func (f *fakeArticles) get(uuid string) *model.Article {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[uuid]; ok {
		return clone(a)
	}
	return nil
}

func (f *fakeArticles) pathTaken(userUUID, path, exclude string) bool {
	for _, a := range f.rows {
		if a.UUID != exclude && a.UserUUID == userUUID && path != "" && a.Path == path {
			return true
		}
	}
	return false
}

func (f *fakeArticles) Create(_ context.Context, a *model.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pathTaken(a.UserUUID, a.Path, a.UUID) {
		return repository.ErrDuplicatePath
	}
	a.CreateTime = time.Now()
	a.UpdateTime = a.CreateTime
	f.rows[a.UUID] = clone(a)
	return nil
}

func (f *fakeArticles) Save(_ context.Context, a *model.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.rows[a.UUID]
	if !ok {
		return repository.ErrArticleNotFound
	}
	if f.pathTaken(a.UserUUID, a.Path, a.UUID) {
		return repository.ErrDuplicatePath
	}
	c := clone(a)
	c.Agree, c.Hit, c.Top, c.Sort = old.Agree, old.Hit, old.Top, old.Sort
	f.rows[a.UUID] = c
	return nil
}

func (f *fakeArticles) FindByUUID(_ context.Context, uuid string) (*model.Article, error) {
	if a := f.get(uuid); a != nil {
		if f.afterFind != nil {
			f.afterFind(uuid)
		}
		return a, nil
	}
	return nil, repository.ErrArticleNotFound
}

func (f *fakeArticles) PathTaken(_ context.Context, userUUID, path, excludeUUID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathTaken(userUUID, path, excludeUUID), nil
}

func (f *fakeArticles) Delete(_ context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[uuid]; !ok {
		return repository.ErrArticleNotFound
	}
	delete(f.rows, uuid)
	return nil
}

func (f *fakeArticles) ListByDocument(_ context.Context, documentUUID string) ([]*model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Article
	for _, a := range f.rows {
		if a.BelongsTo(documentUUID) {
			c := clone(a)
			c.StripBody()
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, nil
}

func (f *fakeArticles) update(uuid string, fn func(a *model.Article)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[uuid]
	if !ok {
		return repository.ErrArticleNotFound
	}
	fn(a)
	return nil
}

func (f *fakeArticles) Detach(_ context.Context, uuid string) error {
	return f.update(uuid, func(a *model.Article) { a.Detach() })
}

func (f *fakeArticles) MoveNode(_ context.Context, uuid, puuid string) error {
	return f.update(uuid, func(a *model.Article) { a.PUUID = model.StringPtr(puuid) })
}

func (f *fakeArticles) UpdateSort(_ context.Context, uuid string, sort int64) error {
	return f.update(uuid, func(a *model.Article) { a.Sort = sort })
}

func (f *fakeArticles) SetTop(_ context.Context, uuid string, top bool) error {
	return f.update(uuid, func(a *model.Article) { a.Top = top })
}

func (f *fakeArticles) AddAgree(_ context.Context, uuid string, delta int64) (int64, error) {
	var agree int64
	err := f.update(uuid, func(a *model.Article) {
		a.Agree = max(a.Agree+delta, 0)
		agree = a.Agree
	})
	return agree, err
}

func (f *fakeArticles) Page(_ context.Context, q *model.PageQuery) ([]*model.Article, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *q
	f.lastPage = &cp

	var out []*model.Article
	for _, a := range f.rows {
		if q.PublicOnlyExcept != nil && a.Privacy && a.UserUUID != *q.PublicOnlyExcept {
			continue
		}
		if q.UserUUID != "" && a.UserUUID != q.UserUUID {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out, int64(len(out)), nil
}

type fakeHistories struct {
	mu   sync.Mutex
	rows []*model.History
}

func (f *fakeHistories) Count(_ context.Context, typ model.HistoryType, entityUUID, ip string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.rows {
		if h.Type == typ && h.EntityUUID == entityUUID && h.IP == ip {
			n++
		}
	}
	return n, nil
}

func (f *fakeHistories) FindLatest(_ context.Context, typ model.HistoryType, entityUUID, ip string) (*model.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		h := f.rows[i]
		if h.Type == typ && h.EntityUUID == entityUUID && h.IP == ip {
			return h, nil
		}
	}
	return nil, repository.ErrHistoryNotFound
}

func (f *fakeHistories) Create(_ context.Context, h *model.History) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, h)
	return nil
}

func (f *fakeHistories) Delete(_ context.Context, uuid string) error {
	return f.filter(func(h *model.History) bool { return h.UUID != uuid })
}

func (f *fakeHistories) DeleteByEntity(_ context.Context, entityUUID string) error {
	return f.filter(func(h *model.History) bool { return h.EntityUUID != entityUUID })
}

func (f *fakeHistories) filter(keep func(h *model.History) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, h := range f.rows {
		if keep(h) {
			kept = append(kept, h)
		}
	}
	f.rows = kept
	return nil
}

type fakeReports struct {
	mu      sync.Mutex
	handled []string
}

func (f *fakeReports) SoftDeleteByEntity(_ context.Context, entityUUID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, entityUUID)
	return 1, nil
}

type fakeUsers map[string]*usermodel.User

func (f fakeUsers) FindByUUID(_ context.Context, uuid string) (*usermodel.User, error) {
	if u, ok := f[uuid]; ok {
		return u, nil
	}
	return nil, userrepository.ErrUserNotFound
}

type fakeTx struct{ calls int }

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type event struct {
	Type    string
	UUID    string
	Payload any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []event
}

func (f *fakeEvents) Publish(eventType, uuid string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{eventType, uuid, payload})
}

func (f *fakeEvents) has(eventType, uuid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Type == eventType && e.UUID == uuid {
			return true
		}
	}
	return false
}

type fakeHits map[string]int64

func (f fakeHits) Add(uuid string) int64 {
	f[uuid]++
	return f[uuid]
}

var (
	alice = &usermodel.User{UUID: "alice", Username: "alice", Role: usermodel.RoleUser}
	bob   = &usermodel.User{UUID: "bob", Username: "bob", Role: usermodel.RoleUser}
	admin = &usermodel.User{UUID: "admin", Username: "admin", Role: usermodel.RoleAdministrator}
)

type fixture struct {
	svc       *ArticleService
	articles  *fakeArticles
	histories *fakeHistories
	reports   *fakeReports
	tx        *fakeTx
	events    *fakeEvents
	hits      fakeHits
}

func newFixture() *fixture {
	f := &fixture{
		articles:  &fakeArticles{rows: map[string]*model.Article{}},
		histories: &fakeHistories{},
		reports:   &fakeReports{},
		tx:        &fakeTx{},
		events:    &fakeEvents{},
		hits:      fakeHits{},
	}
	f.svc = NewArticleService(Deps{
		Articles:  f.articles,
		Histories: f.histories,
		Reports:   f.reports,
		Users:     fakeUsers{"alice": alice, "bob": bob, "admin": admin},
		Tx:        f.tx,
		Events:    f.events,
		Hits:      f.hits,
	})

	seq := 0
	f.svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	f.svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return f
}

// seed stores an article owned by owner. Document nodes get their document and parent.
func (f *fixture) seed(uuid, owner string, typ model.ArticleType, opts ...func(a *model.Article)) *model.Article {
	a := &model.Article{
		UUID:     uuid,
		UserUUID: owner,
		Title:    "title " + uuid,
		Markdown: "# " + uuid,
		HTML:     "<h1>" + uuid + "</h1>",
		Type:     typ,
	}
	for _, opt := range opts {
		opt(a)
	}
	f.articles.put(a)
	return a
}

func inDocument(documentUUID, puuid string) func(a *model.Article) {
	return func(a *model.Article) {
		a.DocumentUUID = model.StringPtr(documentUUID)
		a.PUUID = model.StringPtr(puuid)
	}
}

func private(a *model.Article) { a.Privacy = true }

func withPath(path string) func(a *model.Article) {
	return func(a *model.Article) { a.Path = path }
}
