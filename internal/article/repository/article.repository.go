package repository

import (
	"articlehub/internal/article/model"
	"articlehub/pkg/logger"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrDuplicatePath   = errors.New("path already used by another article of this user")
)

const pathConstraint = "articles_user_path_uniq"

const articleColumns = `uuid, create_time, update_time, sort, user_uuid, title, path, tags, poster_url, author,
	digest, is_markdown, markdown, html, privacy, top, agree, hit, words, type, puuid, document_uuid`

// listColumns skips the article body.
const listColumns = `uuid, create_time, update_time, sort, user_uuid, title, path, tags, poster_url, author,
	digest, is_markdown, '' AS markdown, '' AS html, privacy, top, agree, hit, words, type, puuid, document_uuid`

type ArticleRepository struct {
	DB *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	var a model.Article
	var puuid, documentUUID sql.NullString
	err := row.Scan(&a.UUID, &a.CreateTime, &a.UpdateTime, &a.Sort, &a.UserUUID, &a.Title, &a.Path,
		pq.Array(&a.Tags), &a.PosterURL, &a.Author, &a.Digest, &a.IsMarkdown, &a.Markdown, &a.HTML,
		&a.Privacy, &a.Top, &a.Agree, &a.Hit, &a.Words, &a.Type, &puuid, &documentUUID)
	if err != nil {
		return nil, err
	}
	if puuid.Valid {
		a.PUUID = model.StringPtr(puuid.String)
	}
	if documentUUID.Valid {
		a.DocumentUUID = model.StringPtr(documentUUID.String)
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return &a, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *ArticleRepository) Create(ctx context.Context, a *model.Article) error {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	err := conn(ctx, r.DB).QueryRowContext(ctx, `
		INSERT INTO articles (uuid, sort, user_uuid, title, path, tags, poster_url, author, digest, is_markdown,
			markdown, html, privacy, top, agree, hit, words, type, puuid, document_uuid, create_time, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW())
		RETURNING create_time, update_time`,
		a.UUID, a.Sort, a.UserUUID, a.Title, a.Path, pq.Array(a.Tags), a.PosterURL, a.Author, a.Digest, a.IsMarkdown,
		a.Markdown, a.HTML, a.Privacy, a.Top, a.Agree, a.Hit, a.Words, a.Type, nullable(a.PUUID), nullable(a.DocumentUUID),
	).Scan(&a.CreateTime, &a.UpdateTime)
	if isUniqueViolation(err, pathConstraint) {
		return ErrDuplicatePath
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to create article %s: %v", a.UUID, err)
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

// Save writes the content and placement columns of a. Counters (agree, hit),
// top and sort are owned by their own updates and are not written here.
func (r *ArticleRepository) Save(ctx context.Context, a *model.Article) error {
	if a.Tags == nil {
		a.Tags = []string{}
	}
	err := conn(ctx, r.DB).QueryRowContext(ctx, `
		UPDATE articles SET title = $2, path = $3, tags = $4, poster_url = $5, author = $6, digest = $7,
			is_markdown = $8, markdown = $9, html = $10, privacy = $11, words = $12, type = $13,
			puuid = $14, document_uuid = $15, update_time = NOW()
		WHERE uuid = $1
		RETURNING update_time`,
		a.UUID, a.Title, a.Path, pq.Array(a.Tags), a.PosterURL, a.Author, a.Digest,
		a.IsMarkdown, a.Markdown, a.HTML, a.Privacy, a.Words, a.Type,
		nullable(a.PUUID), nullable(a.DocumentUUID),
	).Scan(&a.UpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrArticleNotFound
	}
	if isUniqueViolation(err, pathConstraint) {
		return ErrDuplicatePath
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to save article %s: %v", a.UUID, err)
		return fmt.Errorf("save article: %w", err)
	}
	return nil
}

func (r *ArticleRepository) FindByUUID(ctx context.Context, uuid string) (*model.Article, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE uuid = $1", uuid)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get article %s: %v", uuid, err)
		return nil, fmt.Errorf("find article: %w", err)
	}
	return a, nil
}

// PathTaken reports whether another article of userUUID already uses path.
func (r *ArticleRepository) PathTaken(ctx context.Context, userUUID, path, excludeUUID string) (bool, error) {
	var taken bool
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM articles WHERE user_uuid = $1 AND path = $2 AND uuid <> $3)",
		userUUID, path, excludeUUID,
	).Scan(&taken)
	if err != nil {
		logger.Sugar.Errorf("Failed to check path %q for user %s: %v", path, userUUID, err)
		return false, fmt.Errorf("check path: %w", err)
	}
	return taken, nil
}

func (r *ArticleRepository) Delete(ctx context.Context, uuid string) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM articles WHERE uuid = $1", uuid)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete article %s: %v", uuid, err)
		return fmt.Errorf("delete article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if n == 0 {
		return ErrArticleNotFound
	}
	return nil
}

// ListByDocument returns every node of a document tree, without bodies.
func (r *ArticleRepository) ListByDocument(ctx context.Context, documentUUID string) ([]*model.Article, error) {
	rows, err := conn(ctx, r.DB).QueryContext(ctx,
		"SELECT "+listColumns+" FROM articles WHERE document_uuid = $1 ORDER BY sort ASC, create_time ASC",
		documentUUID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list nodes of document %s: %v", documentUUID, err)
		return nil, fmt.Errorf("list document nodes: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

// Detach turns a document node back into a standalone article.
func (r *ArticleRepository) Detach(ctx context.Context, uuid string) error {
	return r.execOne(ctx,
		"UPDATE articles SET type = $2, puuid = NULL, document_uuid = NULL, update_time = NOW() WHERE uuid = $1",
		uuid, model.TypeArticle)
}

// MoveNode changes the tree parent of a document node.
func (r *ArticleRepository) MoveNode(ctx context.Context, uuid, puuid string) error {
	return r.execOne(ctx, "UPDATE articles SET puuid = $2 WHERE uuid = $1", uuid, puuid)
}

func (r *ArticleRepository) UpdateSort(ctx context.Context, uuid string, sort int64) error {
	return r.execOne(ctx, "UPDATE articles SET sort = $2 WHERE uuid = $1", uuid, sort)
}

func (r *ArticleRepository) SetTop(ctx context.Context, uuid string, top bool) error {
	return r.execOne(ctx, "UPDATE articles SET top = $2, update_time = NOW() WHERE uuid = $1", uuid, top)
}

// AddAgree shifts the agree counter by delta, never below zero, and returns the new value.
func (r *ArticleRepository) AddAgree(ctx context.Context, uuid string, delta int64) (int64, error) {
	var agree int64
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"UPDATE articles SET agree = GREATEST(agree + $2, 0) WHERE uuid = $1 RETURNING agree", uuid, delta,
	).Scan(&agree)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrArticleNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to update agree of article %s: %v", uuid, err)
		return 0, fmt.Errorf("update agree: %w", err)
	}
	return agree, nil
}

// AddHits adds n views. Unknown articles are ignored, they may have been deleted since the view.
func (r *ArticleRepository) AddHits(ctx context.Context, uuid string, n int64) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx, "UPDATE articles SET hit = hit + $2 WHERE uuid = $1", uuid, n)
	if err != nil {
		logger.Sugar.Errorf("Failed to add %d hits to article %s: %v", n, uuid, err)
		return fmt.Errorf("add hits: %w", err)
	}
	return nil
}

var orderColumns = []struct {
	column string
	dir    func(q *model.PageQuery) model.Direction
}{
	{"top", func(q *model.PageQuery) model.Direction { return q.OrderTop }},
	{"sort", func(q *model.PageQuery) model.Direction { return q.OrderSort }},
	{"update_time", func(q *model.PageQuery) model.Direction { return q.OrderUpdateTime }},
	{"create_time", func(q *model.PageQuery) model.Direction { return q.OrderCreateTime }},
	{"hit", func(q *model.PageQuery) model.Direction { return q.OrderHit }},
	{"privacy", func(q *model.PageQuery) model.Direction { return q.OrderPrivacy }},
}

// buildPageFilter renders the WHERE and ORDER BY clauses of q.
func buildPageFilter(q *model.PageQuery) (where string, orderBy string, args []any) {
	var conds []string
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.UserUUID != "" {
		conds = append(conds, "user_uuid = "+arg(q.UserUUID))
	}
	if q.Privacy != nil {
		conds = append(conds, "privacy = "+arg(*q.Privacy))
	}
	if q.PublicOnlyExcept != nil {
		conds = append(conds, "(privacy = FALSE OR user_uuid = "+arg(*q.PublicOnlyExcept)+")")
	}
	if q.Title != "" {
		conds = append(conds, "title ILIKE "+arg(containsPattern(q.Title)))
	}
	if q.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE "+arg(containsPattern(q.Tag))+")")
	}
	if q.Keyword != "" {
		p := arg(containsPattern(q.Keyword))
		conds = append(conds, "(title ILIKE "+p+" OR markdown ILIKE "+p+")")
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = string(t)
		}
		conds = append(conds, "type = ANY("+arg(pq.Array(types))+")")
	}
	if q.DocumentUUID != "" {
		conds = append(conds, "document_uuid = "+arg(q.DocumentUUID))
	}

	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var orders []string
	for _, o := range orderColumns {
		if d := o.dir(q); d != "" {
			orders = append(orders, o.column+" "+string(d))
		}
	}
	if len(orders) == 0 {
		orders = append(orders, "create_time DESC")
	}
	orders = append(orders, "uuid ASC")
	orderBy = " ORDER BY " + strings.Join(orders, ", ")
	return where, orderBy, args
}

// Page returns one page of articles without bodies, plus the total match count.
func (r *ArticleRepository) Page(ctx context.Context, q *model.PageQuery) ([]*model.Article, int64, error) {
	where, orderBy, args := buildPageFilter(q)
	db := conn(ctx, r.DB)

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles"+where, args...).Scan(&total); err != nil {
		logger.Sugar.Errorf("Failed to count articles: %v", err)
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}
	if total == 0 {
		return []*model.Article{}, 0, nil
	}

	limit := fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	pageArgs := append(append([]any{}, args...), q.PageSize, q.Offset())
	rows, err := db.QueryContext(ctx, "SELECT "+listColumns+" FROM articles"+where+orderBy+limit, pageArgs...)
	if err != nil {
		logger.Sugar.Errorf("Failed to page articles: %v", err)
		return nil, 0, fmt.Errorf("page articles: %w", err)
	}
	defer rows.Close()

	articles, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func collect(rows *sql.Rows) ([]*model.Article, error) {
	articles := []*model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func (r *ArticleRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := conn(ctx, r.DB).ExecContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to update article %v: %v", args[0], err)
		return fmt.Errorf("update article: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	if n == 0 {
		return ErrArticleNotFound
	}
	return nil
}
