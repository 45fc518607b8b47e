package model

import "time"

type HistoryType string

const HistoryAgreeArticle HistoryType = "AGREE_ARTICLE"

// History is an append-only record of an anonymous action, keyed by ip and entity.
type History struct {
	UUID       string      `json:"uuid"`
	CreateTime time.Time   `json:"createTime"`
	Type       HistoryType `json:"type"`
	EntityUUID string      `json:"entityUuid"`
	EntityName string      `json:"entityName"`
	IP         string      `json:"ip"`
	UserUUID   *string     `json:"userUuid"`
}
