package model

import (
	usermodel "articlehub/internal/user/model"
	"time"
)

type ArticleType string

const (
	TypeArticle                    ArticleType = "ARTICLE"
	TypeDocument                   ArticleType = "DOCUMENT"
	TypeDocumentArticle            ArticleType = "DOCUMENT_ARTICLE"
	TypeDocumentPlaceholderArticle ArticleType = "DOCUMENT_PLACEHOLDER_ARTICLE"
)

// Root is the puuid of top level nodes in a document tree.
const Root = "root"

func (t ArticleType) Valid() bool {
	switch t {
	case TypeArticle, TypeDocument, TypeDocumentArticle, TypeDocumentPlaceholderArticle:
		return true
	}
	return false
}

// InDocument reports whether articles of this type live inside a document tree.
func (t ArticleType) InDocument() bool {
	return t == TypeDocumentArticle || t == TypeDocumentPlaceholderArticle
}

type Article struct {
	UUID         string      `json:"uuid"`
	CreateTime   time.Time   `json:"createTime"`
	UpdateTime   time.Time   `json:"updateTime"`
	Sort         int64       `json:"sort"`
	UserUUID     string      `json:"userUuid"`
	Title        string      `json:"title"`
	Path         string      `json:"path"`
	Tags         []string    `json:"tags"`
	PosterURL    string      `json:"posterUrl"`
	Author       string      `json:"author"`
	Digest       string      `json:"digest"`
	IsMarkdown   bool        `json:"isMarkdown"`
	Markdown     string      `json:"markdown,omitempty"`
	HTML         string      `json:"html,omitempty"`
	Privacy      bool        `json:"privacy"`
	Top          bool        `json:"top"`
	Agree        int64       `json:"agree"`
	Hit          int64       `json:"hit"`
	Words        int         `json:"words"`
	Type         ArticleType `json:"type"`
	PUUID        *string     `json:"puuid"`
	DocumentUUID *string     `json:"documentUuid"`

	User     *usermodel.User `json:"user,omitempty"`
	Document *Article        `json:"document,omitempty"`
	Agreed   bool            `json:"agreed,omitempty"`
}

// BelongsTo reports whether a is a node of the document documentUUID.
func (a *Article) BelongsTo(documentUUID string) bool {
	return a.DocumentUUID != nil && *a.DocumentUUID == documentUUID
}

// Parent returns the tree parent, Root when unset.
func (a *Article) Parent() string {
	if a.PUUID == nil || *a.PUUID == "" {
		return Root
	}
	return *a.PUUID
}

// Detach turns a document node back into a standalone article.
func (a *Article) Detach() {
	a.Type = TypeArticle
	a.PUUID = nil
	a.DocumentUUID = nil
}

// StripBody drops the heavy fields for list responses.
func (a *Article) StripBody() {
	a.Markdown = ""
	a.HTML = ""
}

// Summary is the lightweight projection attached to related entities.
func (a *Article) Summary() *Article {
	return &Article{
		UUID:       a.UUID,
		CreateTime: a.CreateTime,
		UpdateTime: a.UpdateTime,
		UserUUID:   a.UserUUID,
		Title:      a.Title,
		Path:       a.Path,
		Privacy:    a.Privacy,
		Type:       a.Type,
	}
}

func StringPtr(s string) *string {
	return &s
}
