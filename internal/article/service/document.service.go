package service

import (
	"articlehub/internal/article/model"
	usermodel "articlehub/internal/user/model"
	"articlehub/pkg/logger"
	"articlehub/socket"
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// findDocument loads documentUUID and fails unless it is a DOCUMENT.
func (s *ArticleService) findDocument(ctx context.Context, documentUUID string) (*model.Article, error) {
	if documentUUID == "" {
		return nil, badRequest("documentUuid is required")
	}
	doc, err := s.find(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if doc.Type != model.TypeDocument {
		return nil, badRequest("%s is not a document", documentUUID)
	}
	return doc, nil
}

// checkParent fails unless puuid is the root or a node of documentUUID other than self.
func (s *ArticleService) checkParent(ctx context.Context, documentUUID, puuid, self string) error {
	if puuid == model.Root {
		return nil
	}
	if puuid == self {
		return badRequest("an article cannot be its own parent")
	}
	parent, err := s.find(ctx, puuid)
	if errors.Is(err, ErrNotFound) {
		return badRequest("parent %s not found", puuid)
	}
	if err != nil {
		return err
	}
	if !parent.BelongsTo(documentUUID) {
		return badRequest("parent %s is not part of document %s", puuid, documentUUID)
	}
	return nil
}

// DocumentAssign attaches a standalone article under puuid in a document.
func (s *ArticleService) DocumentAssign(ctx context.Context, operator *usermodel.User, documentUUID, puuid, articleUUID string, sort int64) (*model.Article, error) {
	if puuid == "" {
		return nil, badRequest("puuid is required")
	}
	doc, err := s.findDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, doc); err != nil {
		return nil, err
	}

	a, err := s.find(ctx, articleUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, a); err != nil {
		return nil, err
	}
	if a.Type != model.TypeArticle {
		return nil, badRequest("only articles of type %s can be assigned", model.TypeArticle)
	}
	if a.DocumentUUID != nil && *a.DocumentUUID != "" {
		return nil, badRequest("article already belongs to document %s", *a.DocumentUUID)
	}
	if err := s.checkParent(ctx, documentUUID, puuid, a.UUID); err != nil {
		return nil, err
	}

	a.Type = model.TypeDocumentArticle
	a.PUUID = model.StringPtr(puuid)
	a.DocumentUUID = model.StringPtr(documentUUID)
	a.Sort = sort
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.Articles.Save(ctx, a); err != nil {
			return storeErr(err, a)
		}
		return s.Articles.UpdateSort(ctx, a.UUID, sort)
	})
	if err != nil {
		return nil, err
	}

	s.Events.Publish(socket.ArticleUpdatedType, a.UUID, a.Summary())
	s.Events.Publish(socket.IndexChangedType, doc.UUID, nil)
	return doc, nil
}

// DocumentIndexDel removes a node and its subtree from a document. With force
// every node is deleted; otherwise pages become standalone articles again and
// only placeholders are deleted.
func (s *ArticleService) DocumentIndexDel(ctx context.Context, operator *usermodel.User, documentUUID, articleUUID string, force bool) (*model.Article, error) {
	doc, err := s.findDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, doc); err != nil {
		return nil, err
	}
	a, err := s.find(ctx, articleUUID)
	if err != nil {
		return nil, err
	}
	if !a.BelongsTo(doc.UUID) {
		return nil, badRequest("article %s is not part of document %s", a.UUID, doc.UUID)
	}

	var deleted, detached []string
	err = s.Tx.InTx(ctx, func(ctx context.Context) error {
		nodes, err := s.Articles.ListByDocument(ctx, doc.UUID)
		if err != nil {
			return err
		}
		for _, n := range model.Subtree(a, nodes) {
			if force || n.Type == model.TypeDocumentPlaceholderArticle {
				if err := s.purge(ctx, n.UUID); err != nil {
					return err
				}
				deleted = append(deleted, n.UUID)
				continue
			}
			if err := s.Articles.Detach(ctx, n.UUID); err != nil {
				return err
			}
			detached = append(detached, n.UUID)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, a)
	}

	logger.Sugar.Infof("Removed %s from document %s: %d deleted, %d detached", a.UUID, doc.UUID, len(deleted), len(detached))
	for _, uuid := range deleted {
		s.Events.Publish(socket.ArticleDeletedType, uuid, nil)
	}
	for _, uuid := range detached {
		s.Events.Publish(socket.ArticleUpdatedType, uuid, nil)
	}
	s.Events.Publish(socket.IndexChangedType, doc.UUID, nil)
	return doc, nil
}

// DocumentArticleSave writes a document page. A placeholder becomes a real page.
func (s *ArticleService) DocumentArticleSave(ctx context.Context, operator *usermodel.User, form *model.DocumentPageForm) (*model.Article, error) {
	if err := form.Validate(); err != nil {
		return nil, badRequest("%s", err.Error())
	}
	a, err := s.find(ctx, form.ArticleUUID)
	if err != nil {
		return nil, err
	}
	if !a.Type.InDocument() {
		return nil, badRequest("article %s is not a document page", a.UUID)
	}
	if err := s.checkMine(operator, a); err != nil {
		return nil, err
	}

	oldPath := a.Path
	form.Apply(a)
	if a.Path != oldPath {
		if err := s.CheckDuplicate(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.Articles.Save(ctx, a); err != nil {
		return nil, storeErr(err, a)
	}

	if a.DocumentUUID != nil {
		doc, err := s.find(ctx, *a.DocumentUUID)
		if err != nil {
			logger.Sugar.Warnf("Document %s of page %s not loaded: %v", *a.DocumentUUID, a.UUID, err)
		} else {
			a.Document = doc.Summary()
		}
		s.Events.Publish(socket.IndexChangedType, *a.DocumentUUID, nil)
	}
	s.publishUpdated(a)
	return a, nil
}

// DocumentPlaceholderCreate adds an empty page under puuid. The page belongs to
// the document's owner and inherits its privacy.
func (s *ArticleService) DocumentPlaceholderCreate(ctx context.Context, operator *usermodel.User, documentUUID, puuid, title string, sort int64) (*model.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, badRequest("title is required")
	}
	if utf8.RuneCountInString(title) > 255 {
		return nil, badRequest("title must be at most 255 characters")
	}
	if puuid == "" {
		puuid = model.Root
	}

	doc, err := s.findDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMine(operator, doc); err != nil {
		return nil, err
	}

	a := &model.Article{
		UUID:         s.newID(),
		UserUUID:     doc.UserUUID,
		Title:        title,
		Tags:         []string{},
		IsMarkdown:   true,
		Privacy:      doc.Privacy,
		Type:         model.TypeDocumentPlaceholderArticle,
		PUUID:        model.StringPtr(puuid),
		DocumentUUID: model.StringPtr(doc.UUID),
		Sort:         sort,
	}
	if a.Sort == 0 {
		a.Sort = s.now().UnixMilli()
	}
	if err := s.checkParent(ctx, doc.UUID, puuid, a.UUID); err != nil {
		return nil, err
	}
	if err := s.Articles.Create(ctx, a); err != nil {
		return nil, storeErr(err, a)
	}

	s.Events.Publish(socket.IndexChangedType, doc.UUID, nil)
	return a, nil
}

// DocumentIndex returns the page tree of a document.
func (s *ArticleService) DocumentIndex(ctx context.Context, operator *usermodel.User, documentUUID string) (*model.DocumentIndex, error) {
	doc, err := s.findDocument(ctx, documentUUID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(operator, doc); err != nil {
		return nil, err
	}

	nodes, err := s.Articles.ListByDocument(ctx, doc.UUID)
	if err != nil {
		return nil, err
	}
	return &model.DocumentIndex{Document: doc.Summary(), Children: model.BuildIndex(s.visibleNodes(operator, nodes))}, nil
}

// visibleNodes drops the private nodes operator may not read, with everything beneath them.
func (s *ArticleService) visibleNodes(operator *usermodel.User, nodes []*model.Article) []*model.Article {
	hidden := make(map[string]bool)
	for _, n := range nodes {
		if hidden[n.UUID] || s.checkVisible(operator, n) == nil {
			continue
		}
		for _, d := range model.Subtree(n, nodes) {
			hidden[d.UUID] = true
		}
	}
	if len(hidden) == 0 {
		return nodes
	}
	out := make([]*model.Article, 0, len(nodes)-len(hidden))
	for _, n := range nodes {
		if !hidden[n.UUID] {
			out = append(out, n)
		}
	}
	return out
}
