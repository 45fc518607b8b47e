package handler

import (
	"articlehub/internal/article/model"
	"articlehub/internal/article/service"
	usermodel "articlehub/internal/user/model"
	"articlehub/middleware"
	"articlehub/pkg/logger"
	"articlehub/pkg/response"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ArticleService is what the handler needs from the article service.
type ArticleService interface {
	Create(ctx context.Context, operator *usermodel.User, form *model.ArticleForm) (*model.Article, error)
	Edit(ctx context.Context, operator *usermodel.User, form *model.ArticleForm) (*model.Article, error)
	Delete(ctx context.Context, operator *usermodel.User, uuid string) (*model.Article, error)
	Detail(ctx context.Context, operator *usermodel.User, uuid, ip string) (*model.Article, error)
	Sort(ctx context.Context, operator *usermodel.User, uuid1 string, sort1 int64, uuid2 string, sort2 int64) error
	Page(ctx context.Context, operator *usermodel.User, q *model.PageQuery) (*model.Pager[*model.Article], error)
	Agree(ctx context.Context, operator *usermodel.User, articleUUID, ip string) (*model.Article, error)
	CancelAgree(ctx context.Context, operator *usermodel.User, articleUUID, ip string) (*model.Article, error)
	Top(ctx context.Context, operator *usermodel.User, articleUUID string) (*model.Article, error)
	CancelTop(ctx context.Context, operator *usermodel.User, articleUUID string) (*model.Article, error)
	DocumentAssign(ctx context.Context, operator *usermodel.User, documentUUID, puuid, articleUUID string, sort int64) (*model.Article, error)
	DocumentIndexDel(ctx context.Context, operator *usermodel.User, documentUUID, articleUUID string, force bool) (*model.Article, error)
	DocumentArticleSave(ctx context.Context, operator *usermodel.User, form *model.DocumentPageForm) (*model.Article, error)
	DocumentPlaceholderCreate(ctx context.Context, operator *usermodel.User, documentUUID, puuid, title string, sort int64) (*model.Article, error)
	DocumentIndex(ctx context.Context, operator *usermodel.User, documentUUID string) (*model.DocumentIndex, error)
}

type ArticleHandler struct {
	Service ArticleService
}

func NewArticleHandler(service ArticleService) *ArticleHandler {
	return &ArticleHandler{Service: service}
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		response.Error(w, response.CodeMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// writeError maps service errors to response codes. Unexpected errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bad *service.BadRequestError
	switch {
	case errors.As(err, &bad):
		response.Error(w, response.CodeBadRequest, bad.Msg)
	case errors.Is(err, service.ErrAlreadyAgreed), errors.Is(err, service.ErrNotAgreed):
		response.Error(w, response.CodeBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, response.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrLogin):
		response.Error(w, response.CodeLogin, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, response.CodeUnauthorized, err.Error())
	default:
		logger.Sugar.Errorf("Handler: %s %s failed: %v", r.Method, r.URL.Path, err)
		response.Error(w, response.CodeServer, "internal server error")
	}
}

func badParam(w http.ResponseWriter, format string, args ...any) {
	response.Error(w, response.CodeBadRequest, fmt.Sprintf(format, args...))
}

func required(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		badParam(w, "Missing %s parameter", name)
		return "", false
	}
	return v, true
}

func int64Param(r *http.Request, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", name)
	}
	return &v, nil
}

func decodeForm(w http.ResponseWriter, r *http.Request) (*model.ArticleForm, bool) {
	var form model.ArticleForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		badParam(w, "Invalid request body")
		return nil, false
	}
	return &form, true
}

func (h *ArticleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}

	a, err := h.Service.Create(r.Context(), middleware.UserFrom(r.Context()), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, a)
}

func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodDelete) {
		return
	}
	uuid, ok := required(w, r, "uuid")
	if !ok {
		return
	}

	a, err := h.Service.Delete(r.Context(), middleware.UserFrom(r.Context()), uuid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.StripBody()
	response.Success(w, a)
}

func (h *ArticleHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}
	form, ok := decodeForm(w, r)
	if !ok {
		return
	}

	a, err := h.Service.Edit(r.Context(), middleware.UserFrom(r.Context()), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, a)
}

func (h *ArticleHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	uuid, ok := required(w, r, "uuid")
	if !ok {
		return
	}

	a, err := h.Service.Detail(r.Context(), middleware.UserFrom(r.Context()), uuid, middleware.ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, a)
}

func (h *ArticleHandler) Sort(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	uuid1, ok := required(w, r, "uuid1")
	if !ok {
		return
	}
	uuid2, ok := required(w, r, "uuid2")
	if !ok {
		return
	}
	if _, ok := required(w, r, "sort1"); !ok {
		return
	}
	if _, ok := required(w, r, "sort2"); !ok {
		return
	}
	sort1, err := int64Param(r, "sort1", 0)
	if err != nil {
		badParam(w, "%v", err)
		return
	}
	sort2, err := int64Param(r, "sort2", 0)
	if err != nil {
		badParam(w, "%v", err)
		return
	}

	if err := h.Service.Sort(r.Context(), middleware.UserFrom(r.Context()), uuid1, sort1, uuid2, sort2); err != nil {
		writeError(w, r, err)
		return
	}
	response.SuccessMsg(w, "sorted")
}

func parsePageQuery(r *http.Request) (*model.PageQuery, error) {
	q := &model.PageQuery{
		UserUUID:     strings.TrimSpace(r.FormValue("userUuid")),
		Title:        strings.TrimSpace(r.FormValue("title")),
		Tag:          strings.TrimSpace(r.FormValue("tag")),
		Keyword:      strings.TrimSpace(r.FormValue("keyword")),
		DocumentUUID: strings.TrimSpace(r.FormValue("documentUuid")),
	}

	page, err := int64Param(r, "page", 0)
	if err != nil {
		return nil, err
	}
	pageSize, err := int64Param(r, "pageSize", model.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	q.Page, q.PageSize = int(page), int(pageSize)

	orders := []struct {
		name string
		dst  *model.Direction
	}{
		{"orderSort", &q.OrderSort},
		{"orderUpdateTime", &q.OrderUpdateTime},
		{"orderCreateTime", &q.OrderCreateTime},
		{"orderTop", &q.OrderTop},
		{"orderHit", &q.OrderHit},
		{"orderPrivacy", &q.OrderPrivacy},
	}
	for _, o := range orders {
		d, err := model.ParseDirection(r.FormValue(o.name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.name, err)
		}
		*o.dst = d
	}

	if q.Privacy, err = boolParam(r, "privacy"); err != nil {
		return nil, err
	}
	needTags, err := boolParam(r, "needTags")
	if err != nil {
		return nil, err
	}
	q.NeedTags = needTags != nil && *needTags

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for _, raw := range r.Form["types"] {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			typ := model.ArticleType(strings.ToUpper(t))
			if !typ.Valid() {
				return nil, fmt.Errorf("unknown article type %s", t)
			}
			q.Types = append(q.Types, typ)
		}
	}
	return q, nil
}

func (h *ArticleHandler) Page(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	q, err := parsePageQuery(r)
	if err != nil {
		badParam(w, "%v", err)
		return
	}

	pager, err := h.Service.Page(r.Context(), middleware.UserFrom(r.Context()), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, pager)
}

func (h *ArticleHandler) Agree(w http.ResponseWriter, r *http.Request) {
	h.agree(w, r, h.Service.Agree)
}

func (h *ArticleHandler) CancelAgree(w http.ResponseWriter, r *http.Request) {
	h.agree(w, r, h.Service.CancelAgree)
}

func (h *ArticleHandler) agree(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, operator *usermodel.User, articleUUID, ip string) (*model.Article, error)) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	articleUUID, ok := required(w, r, "articleUuid")
	if !ok {
		return
	}

	a, err := op(r.Context(), middleware.UserFrom(r.Context()), articleUUID, middleware.ClientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.StripBody()
	response.Success(w, a)
}

func (h *ArticleHandler) Top(w http.ResponseWriter, r *http.Request) {
	h.top(w, r, h.Service.Top)
}

func (h *ArticleHandler) CancelTop(w http.ResponseWriter, r *http.Request) {
	h.top(w, r, h.Service.CancelTop)
}

func (h *ArticleHandler) top(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, operator *usermodel.User, articleUUID string) (*model.Article, error)) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	articleUUID, ok := required(w, r, "articleUuid")
	if !ok {
		return
	}

	a, err := op(r.Context(), middleware.UserFrom(r.Context()), articleUUID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.StripBody()
	response.Success(w, a)
}

func (h *ArticleHandler) DocumentAssign(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	documentUUID, ok := required(w, r, "documentUuid")
	if !ok {
		return
	}
	puuid, ok := required(w, r, "puuid")
	if !ok {
		return
	}
	articleUUID, ok := required(w, r, "articleUuid")
	if !ok {
		return
	}
	sort, err := int64Param(r, "sort", 0)
	if err != nil {
		badParam(w, "%v", err)
		return
	}

	doc, err := h.Service.DocumentAssign(r.Context(), middleware.UserFrom(r.Context()), documentUUID, puuid, articleUUID, sort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc.StripBody()
	response.Success(w, doc)
}

func (h *ArticleHandler) DocumentIndexDel(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	documentUUID, ok := required(w, r, "documentUuid")
	if !ok {
		return
	}
	articleUUID, ok := required(w, r, "articleUuid")
	if !ok {
		return
	}
	force, err := boolParam(r, "forceDelete")
	if err != nil {
		badParam(w, "%v", err)
		return
	}

	doc, err := h.Service.DocumentIndexDel(r.Context(), middleware.UserFrom(r.Context()), documentUUID, articleUUID, force != nil && *force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc.StripBody()
	response.Success(w, doc)
}

func (h *ArticleHandler) DocumentArticleSave(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	words, err := int64Param(r, "words", 0)
	if err != nil {
		badParam(w, "%v", err)
		return
	}
	form := &model.DocumentPageForm{
		ArticleUUID: strings.TrimSpace(r.FormValue("articleUuid")),
		Title:       r.FormValue("title"),
		Words:       int(words),
		Path:        r.FormValue("path"),
		Markdown:    r.FormValue("markdown"),
		HTML:        r.FormValue("html"),
	}

	a, err := h.Service.DocumentArticleSave(r.Context(), middleware.UserFrom(r.Context()), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, a)
}

func (h *ArticleHandler) DocumentPlaceholderCreate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	documentUUID, ok := required(w, r, "documentUuid")
	if !ok {
		return
	}
	title, ok := required(w, r, "title")
	if !ok {
		return
	}
	sort, err := int64Param(r, "sort", 0)
	if err != nil {
		badParam(w, "%v", err)
		return
	}

	a, err := h.Service.DocumentPlaceholderCreate(r.Context(), middleware.UserFrom(r.Context()),
		documentUUID, strings.TrimSpace(r.FormValue("puuid")), title, sort)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, a)
}

func (h *ArticleHandler) DocumentIndex(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	documentUUID, ok := required(w, r, "documentUuid")
	if !ok {
		return
	}

	index, err := h.Service.DocumentIndex(r.Context(), middleware.UserFrom(r.Context()), documentUUID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Success(w, index)
}
