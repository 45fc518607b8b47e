package service

import (
	"articlehub/internal/article/model"
	usermodel "articlehub/internal/user/model"
	"context"
)

type ArticleStore interface {
	Create(ctx context.Context, a *model.Article) error
	Save(ctx context.Context, a *model.Article) error
	FindByUUID(ctx context.Context, uuid string) (*model.Article, error)
	PathTaken(ctx context.Context, userUUID, path, excludeUUID string) (bool, error)
	Delete(ctx context.Context, uuid string) error
	ListByDocument(ctx context.Context, documentUUID string) ([]*model.Article, error)
	Detach(ctx context.Context, uuid string) error
	MoveNode(ctx context.Context, uuid, puuid string) error
	UpdateSort(ctx context.Context, uuid string, sort int64) error
	SetTop(ctx context.Context, uuid string, top bool) error
	AddAgree(ctx context.Context, uuid string, delta int64) (int64, error)
	Page(ctx context.Context, q *model.PageQuery) ([]*model.Article, int64, error)
}

type HistoryStore interface {
	Count(ctx context.Context, typ model.HistoryType, entityUUID, ip string) (int, error)
	FindLatest(ctx context.Context, typ model.HistoryType, entityUUID, ip string) (*model.History, error)
	Create(ctx context.Context, h *model.History) error
	Delete(ctx context.Context, uuid string) error
	DeleteByEntity(ctx context.Context, entityUUID string) error
}

type ReportStore interface {
	SoftDeleteByEntity(ctx context.Context, entityUUID string) (int64, error)
}

type UserStore interface {
	FindByUUID(ctx context.Context, uuid string) (*usermodel.User, error)
}

// Transactor runs fn in one database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher delivers change events to live subscribers of a room.
type Publisher interface {
	Publish(eventType, uuid string, payload any)
}

// HitCounter buffers views; Add returns the views not yet persisted.
type HitCounter interface {
	Add(uuid string) int64
}

// Deps groups the collaborators of ArticleService.
type Deps struct {
	Articles  ArticleStore
	Histories HistoryStore
	Reports   ReportStore
	Users     UserStore
	Tx        Transactor
	Events    Publisher
	Hits      HitCounter
}
