package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLength = 255
	maxTags        = 20
)

var pathPattern = regexp.MustCompile(`^[A-Za-z0-9_\-.]{1,128}$`)

// ArticleForm is the request body of create and edit.
type ArticleForm struct {
	UUID       string      `json:"uuid"`
	Title      string      `json:"title"`
	Path       string      `json:"path"`
	Tags       []string    `json:"tags"`
	PosterURL  string      `json:"posterUrl"`
	Author     string      `json:"author"`
	Digest     string      `json:"digest"`
	IsMarkdown bool        `json:"isMarkdown"`
	Markdown   string      `json:"markdown"`
	HTML       string      `json:"html"`
	Privacy    bool        `json:"privacy"`
	Words      int         `json:"words"`
	Type       ArticleType `json:"type"`
}

// Validate checks the fields shared by create and edit.
func (f *ArticleForm) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Path = strings.TrimSpace(f.Path)

	if f.Title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(f.Title) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	if err := ValidatePath(f.Path); err != nil {
		return err
	}
	if f.Words < 0 {
		return errors.New("words must not be negative")
	}
	if len(f.Tags) > maxTags {
		return fmt.Errorf("at most %d tags are allowed", maxTags)
	}
	f.Tags = normalizeTags(f.Tags)
	return nil
}

// ValidateCreate also checks the type: only articles and documents are created directly.
func (f *ArticleForm) ValidateCreate() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Type == "" {
		f.Type = TypeArticle
	}
	if f.Type != TypeArticle && f.Type != TypeDocument {
		return fmt.Errorf("type %s cannot be created directly", f.Type)
	}
	return nil
}

// ValidatePath accepts the empty path or a URL-safe slug.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if !pathPattern.MatchString(path) {
		return fmt.Errorf("path %q may only contain letters, digits, '-', '_' and '.' (max 128)", path)
	}
	return nil
}

// Create builds a new article owned by userUUID.
func (f *ArticleForm) Create(userUUID string) *Article {
	a := &Article{UserUUID: userUUID, Type: f.Type}
	f.apply(a)
	return a
}

// Update copies the editable fields onto a. Type and ownership never change.
func (f *ArticleForm) Update(a *Article) {
	f.apply(a)
}

func (f *ArticleForm) apply(a *Article) {
	a.Title = f.Title
	a.Path = f.Path
	a.Tags = f.Tags
	a.PosterURL = f.PosterURL
	a.Author = f.Author
	a.Digest = f.Digest
	a.IsMarkdown = f.IsMarkdown
	a.Markdown = f.Markdown
	a.HTML = f.HTML
	a.Privacy = f.Privacy
	a.Words = f.Words
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// DocumentPageForm carries the fields of a document page save.
type DocumentPageForm struct {
	ArticleUUID string
	Title       string
	Words       int
	Path        string
	Markdown    string
	HTML        string
}

func (f *DocumentPageForm) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Path = strings.TrimSpace(f.Path)

	if f.ArticleUUID == "" {
		return errors.New("articleUuid is required")
	}
	if f.Title == "" {
		return errors.New("title is required")
	}
	if utf8.RuneCountInString(f.Title) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	if strings.TrimSpace(f.Markdown) == "" {
		return errors.New("markdown is required")
	}
	if strings.TrimSpace(f.HTML) == "" {
		return errors.New("html is required")
	}
	if f.Words < 0 {
		return errors.New("words must not be negative")
	}
	return ValidatePath(f.Path)
}

// Apply writes the page fields onto a and promotes a placeholder to a real page.
func (f *DocumentPageForm) Apply(a *Article) {
	a.Title = f.Title
	a.Words = f.Words
	a.Path = f.Path
	a.Markdown = f.Markdown
	a.HTML = f.HTML
	a.IsMarkdown = true
	if a.Type == TypeDocumentPlaceholderArticle {
		a.Type = TypeDocumentArticle
	}
}
