package model

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
	// MaxPage keeps Page*PageSize inside a postgres integer.
	MaxPage = math.MaxInt32 / MaxPageSize
)

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case; the empty string means "not ordered".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case string(Asc):
		return Asc, nil
	case string(Desc):
		return Desc, nil
	}
	return "", fmt.Errorf("invalid order direction %q", s)
}

// PageQuery carries the filters and orders of the article page endpoint.
type PageQuery struct {
	Page     int
	PageSize int

	OrderSort       Direction
	OrderUpdateTime Direction
	OrderCreateTime Direction
	OrderTop        Direction
	OrderHit        Direction
	OrderPrivacy    Direction

	UserUUID     string
	Privacy      *bool
	Title        string
	Tag          string
	Keyword      string
	Types        []ArticleType
	DocumentUUID string
	NeedTags     bool

	// PublicOnlyExcept restricts results to public articles, except the ones
	// owned by this user. Set by the service for non-managers.
	PublicOnlyExcept *string
}

// Normalize clamps paging values to their allowed range.
func (q *PageQuery) Normalize() {
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
}

// Offset is the number of rows skipped before this page. Call Normalize first.
func (q *PageQuery) Offset() int {
	return q.Page * q.PageSize
}

// Pager is one page of results.
type Pager[T any] struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	Data       []T   `json:"data"`
}

func NewPager[T any](page, pageSize int, total int64, data []T) *Pager[T] {
	if data == nil {
		data = []T{}
	}
	var totalPages int64
	if pageSize > 0 {
		totalPages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return &Pager[T]{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
		Data:       data,
	}
}
