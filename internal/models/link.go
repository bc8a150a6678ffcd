package models

import (
	"time"
)

type Link struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	TargetURL string    `json:"target_url"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateLinkInput struct {
	TargetURL string `json:"target_url" form:"target_url" binding:"required"`
	Title     string `json:"title,omitempty" form:"title"`
}
