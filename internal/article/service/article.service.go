package service

import (
	"articlehub/internal/article/model"
	"articlehub/internal/article/repository"
	usermodel "articlehub/internal/user/model"
	"articlehub/pkg/logger"
	"articlehub/socket"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type ArticleService struct {
	Deps
	now   func() time.Time
	newID func() string
}

func NewArticleService(deps Deps) *ArticleService {
	return &ArticleService{Deps: deps, now: time.Now, newID: uuid.NewString}
}

// Check fails unless operator may act on an entity owned by ownerUUID.
func (s *ArticleService) Check(operator *usermodel.User, manage, mine usermodel.Feature, ownerUUID string) error {
	if operator == nil {
		return ErrLogin
	}
	if !operator.CanTouch(manage, mine, ownerUUID) {
		return ErrForbidden
	}
	return nil
}

func (s *ArticleService) checkMine(operator *usermodel.User, a *model.Article) error {
	return s.Check(operator, usermodel.FeatureUserManage, usermodel.FeatureUserMine, a.UserUUID)
}

func (s *ArticleService) requireManage(operator *usermodel.User) error {
	if operator == nil {
		return ErrLogin
	}
	if !operator.HasFeature(usermodel.FeatureUserManage) {
		return ErrForbidden
	}
	return nil
}

// checkVisible lets everyone read public articles; private ones need ownership or manage.
func (s *ArticleService) checkVisible(operator *usermodel.User, a *model.Article) error {
	if !a.Privacy {
		return nil
	}
	return s.checkMine(operator, a)
}

// CheckDuplicate fails when another article of the same owner already uses a's path.
func (s *ArticleService) CheckDuplicate(ctx context.Context, a *model.Article) error {
	if a.Path == "" {
		return nil
	}
	taken, err := s.Articles.PathTaken(ctx, a.UserUUID, a.Path, a.UUID)
	if err != nil {
		return err
	}
	if taken {
		return badRequest("path %s is already used", a.Path)
	}
	return nil
}

func (s *ArticleService) find(ctx context.Context, uuid string) (*model.Article, error) {
	if uuid == "" {
		return nil, badRequest("uuid is required")
	}
	a, err := s.Articles.FindByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrArticleNotFound) {
		return nil, ErrNotFound
	}
	return a, err
}

// storeErr turns repository conflicts into caller errors.
func storeErr(err error, a *model.Article) error {
	switch {
	case errors.Is(err, repository.ErrDuplicatePath):
		return badRequest("path %s is already used", a.Path)
	case errors.Is(err, repository.ErrArticleNotFound):
		return ErrNotFound
	}
	return err
}

func (s *ArticleService) Create(ctx context.Context, operator *usermodel.User, form *model.ArticleForm) (*model.Article, error) {
	if operator == nil {
		return nil, ErrLogin
	}
	if err := form.ValidateCreate(); err != nil {
		return nil, badRequest("%s", err.Error())
	}

	a := form.Create(operator.UUID)
	a.UUID = s.newID()
	a.Sort = s.now().UnixMilli()
	if err := s.CheckDuplicate(ctx, a); err != nil {
		return nil, err
	}
	if err := s.Articles.Create(ctx, a); err != nil {
		return nil, storeErr(err, a)
	}

	logger.Sugar.Infof("Article %s created by %s", a.UUID, operator.UUID)
	return a, nil
}

func (s *ArticleService) Edit(ctx context.Context, operator *usermodel.User, form *model.ArticleForm) (*model.Article, error) {
	if form.UUID == "" {
		return nil, badRequest("uuid is required")
	}
	if err := form.Validate(); err != nil {
		return nil, badRequest("%s", err.Error())
	}

	a, err := s.find(ctx, form.UUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, a); err != nil {
		return nil, err
	}

	oldPath := a.Path
	form.Update(a)
	if a.Path != oldPath {
		if err := s.CheckDuplicate(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.Articles.Save(ctx, a); err != nil {
		return nil, storeErr(err, a)
	}

	s.publishUpdated(a)
	return a, nil
}

// Delete removes an article. A deleted document hands its pages back as
// standalone articles and drops its placeholders; a deleted page hands its
// children to its own parent.
func (s *ArticleService) Delete(ctx context.Context, operator *usermodel.User, uuid string) (*model.Article, error) {
	a, err := s.find(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, a); err != nil {
		return nil, err
	}

	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		switch {
		case a.Type == model.TypeDocument:
			if err := s.dissolve(ctx, a.UUID); err != nil {
				return err
			}
		case a.Type.InDocument() && a.DocumentUUID != nil:
			if err := s.reparentChildren(ctx, a); err != nil {
				return err
			}
		}
		return s.purge(ctx, a.UUID)
	})
	if err != nil {
		return nil, storeErr(err, a)
	}

	s.Events.Publish(socket.ArticleDeletedType, a.UUID, nil)
	if a.Type.InDocument() && a.DocumentUUID != nil {
		s.Events.Publish(socket.IndexChangedType, *a.DocumentUUID, nil)
	}
	logger.Sugar.Infof("Article %s deleted by %s", a.UUID, operator.UUID)
	return a, nil
}

// purge deletes an article with its likes, closing the reports filed against it.
func (s *ArticleService) purge(ctx context.Context, uuid string) error {
	if _, err := s.Reports.SoftDeleteByEntity(ctx, uuid); err != nil {
		return err
	}
	if err := s.Histories.DeleteByEntity(ctx, uuid); err != nil {
		return err
	}
	return s.Articles.Delete(ctx, uuid)
}

func (s *ArticleService) dissolve(ctx context.Context, documentUUID string) error {
	nodes, err := s.Articles.ListByDocument(ctx, documentUUID)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.Type == model.TypeDocumentPlaceholderArticle {
			err = s.purge(ctx, n.UUID)
		} else {
			err = s.Articles.Detach(ctx, n.UUID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *ArticleService) reparentChildren(ctx context.Context, a *model.Article) error {
	nodes, err := s.Articles.ListByDocument(ctx, *a.DocumentUUID)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.UUID != a.UUID && n.Parent() == a.UUID {
			if err := s.Articles.MoveNode(ctx, n.UUID, a.Parent()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Detail loads an article for reading and counts the view. ip identifies
// the caller for the agreed flag and may be empty.
func (s *ArticleService) Detail(ctx context.Context, operator *usermodel.User, uuid, ip string) (*model.Article, error) {
	a, err := s.find(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(operator, a); err != nil {
		return nil, err
	}

	if a.DocumentUUID != nil && *a.DocumentUUID != "" {
		doc, err := s.find(ctx, *a.DocumentUUID)
		switch {
		case errors.Is(err, ErrNotFound):
			logger.Sugar.Warnf("Article %s points to missing document %s", a.UUID, *a.DocumentUUID)
		case err != nil:
			return nil, err
		default:
			if err := s.checkVisible(operator, doc); err != nil {
				return nil, err
			}
			a.Document = doc.Summary()
		}
	}

	if user, err := s.Users.FindByUUID(ctx, a.UserUUID); err != nil {
		logger.Sugar.Warnf("Owner %s of article %s not loaded: %v", a.UserUUID, a.UUID, err)
	} else {
		a.User = user
	}

	if ip != "" {
		count, err := s.Histories.Count(ctx, model.HistoryAgreeArticle, a.UUID, ip)
		if err != nil {
			return nil, err
		}
		a.Agreed = count > 0
	}

	a.Hit += s.Hits.Add(a.UUID)
	return a, nil
}

// Sort writes two sort keys at once, typically swapping two neighbours.
func (s *ArticleService) Sort(ctx context.Context, operator *usermodel.User, uuid1 string, sort1 int64, uuid2 string, sort2 int64) error {
	if err := s.requireManage(operator); err != nil {
		return err
	}
	if _, err := s.find(ctx, uuid1); err != nil {
		return err
	}
	if _, err := s.find(ctx, uuid2); err != nil {
		return err
	}

	return s.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.Articles.UpdateSort(ctx, uuid1, sort1); err != nil {
			return err
		}
		return s.Articles.UpdateSort(ctx, uuid2, sort2)
	})
}

// Page lists articles. Managers see everything; other users see their own
// articles and the public articles of others.
func (s *ArticleService) Page(ctx context.Context, operator *usermodel.User, q *model.PageQuery) (*model.Pager[*model.Article], error) {
	if operator == nil {
		return nil, ErrLogin
	}
	q.Normalize()
	q.PublicOnlyExcept = nil
	if !operator.HasFeature(usermodel.FeatureUserManage) {
		q.PublicOnlyExcept = &operator.UUID
	}

	list, total, err := s.Articles.Page(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		a.StripBody()
		if !q.NeedTags {
			a.Tags = nil
		}
	}
	return model.NewPager(q.Page, q.PageSize, total, list), nil
}

type agreePayload struct {
	Agree int64 `json:"agree"`
}

// Agree records one like of the article from ip.
func (s *ArticleService) Agree(ctx context.Context, operator *usermodel.User, articleUUID, ip string) (*model.Article, error) {
	if ip == "" {
		return nil, badRequest("client address unknown")
	}
	a, err := s.find(ctx, articleUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(operator, a); err != nil {
		return nil, err
	}

	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		count, err := s.Histories.Count(ctx, model.HistoryAgreeArticle, a.UUID, ip)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyAgreed
		}

		h := &model.History{
			UUID:       s.newID(),
			Type:       model.HistoryAgreeArticle,
			EntityUUID: a.UUID,
			EntityName: a.Title,
			IP:         ip,
		}
		if operator != nil {
			h.UserUUID = model.StringPtr(operator.UUID)
		}
		if err := s.Histories.Create(ctx, h); err != nil {
			if errors.Is(err, repository.ErrDuplicateHistory) {
				return ErrAlreadyAgreed
			}
			return err
		}

		agree, err := s.Articles.AddAgree(ctx, a.UUID, 1)
		if err != nil {
			return err
		}
		a.Agree = agree
		return nil
	})
	if err != nil {
		return nil, storeErr(err, a)
	}

	a.Agreed = true
	s.Events.Publish(socket.AgreeChangedType, a.UUID, agreePayload{Agree: a.Agree})
	return a, nil
}

// CancelAgree removes the like ip left on the article.
func (s *ArticleService) CancelAgree(ctx context.Context, operator *usermodel.User, articleUUID, ip string) (*model.Article, error) {
	if ip == "" {
		return nil, badRequest("client address unknown")
	}
	a, err := s.find(ctx, articleUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(operator, a); err != nil {
		return nil, err
	}

	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		h, err := s.Histories.FindLatest(ctx, model.HistoryAgreeArticle, a.UUID, ip)
		if errors.Is(err, repository.ErrHistoryNotFound) {
			return ErrNotAgreed
		}
		if err != nil {
			return err
		}
		if err := s.Histories.Delete(ctx, h.UUID); err != nil {
			return err
		}

		agree, err := s.Articles.AddAgree(ctx, a.UUID, -1)
		if err != nil {
			return err
		}
		a.Agree = agree
		return nil
	})
	if err != nil {
		return nil, storeErr(err, a)
	}

	a.Agreed = false
	s.Events.Publish(socket.AgreeChangedType, a.UUID, agreePayload{Agree: a.Agree})
	return a, nil
}

func (s *ArticleService) Top(ctx context.Context, operator *usermodel.User, articleUUID string) (*model.Article, error) {
	return s.setTop(ctx, operator, articleUUID, true)
}

func (s *ArticleService) CancelTop(ctx context.Context, operator *usermodel.User, articleUUID string) (*model.Article, error) {
	return s.setTop(ctx, operator, articleUUID, false)
}

func (s *ArticleService) setTop(ctx context.Context, operator *usermodel.User, articleUUID string, top bool) (*model.Article, error) {
	if err := s.requireManage(operator); err != nil {
		return nil, err
	}
	a, err := s.find(ctx, articleUUID)
	if err != nil {
		return nil, err
	}
	if a.Top == top {
		if top {
			return nil, badRequest("article is already top")
		}
		return nil, badRequest("article is not top")
	}

	if err := s.Articles.SetTop(ctx, a.UUID, top); err != nil {
		return nil, storeErr(err, a)
	}
	a.Top = top
	s.Events.Publish(socket.TopChangedType, a.UUID, map[string]bool{"top": top})
	return a, nil
}

func (s *ArticleService) publishUpdated(a *model.Article) {
	s.Events.Publish(socket.ArticleUpdatedType, a.UUID, a.Summary())
	if a.Type.InDocument() && a.DocumentUUID != nil {
		s.Events.Publish(socket.ArticleUpdatedType, *a.DocumentUUID, a.Summary())
	}
}
