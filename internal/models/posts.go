package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"community/internal/db"
)

const postColumns = `id, title, description, image_url, category, author_id, author_name, like_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.ImageURL, &p.Category,
		&p.AuthorID, &p.AuthorName, &p.LikeCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func queryPosts(ctx context.Context, d *db.DB, q string, args ...any) ([]Post, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// ListPosts returns posts newest first. An empty category lists everything
// and a category no post can have lists nothing.
// Post ids are ULIDs, so ordering by id is ordering by creation time.
func ListPosts(ctx context.Context, d *db.DB, category string) ([]Post, error) {
	if category == "" {
		return queryPosts(ctx, d, `SELECT `+postColumns+` FROM posts ORDER BY id DESC`)
	}
	c, err := ParseCategory(category)
	if err != nil {
		return []Post{}, nil
	}
	return queryPosts(ctx, d, `SELECT `+postColumns+` FROM posts WHERE category = ? ORDER BY id DESC`, c)
}

func ListPostsByAuthor(ctx context.Context, d *db.DB, authorID string) ([]Post, error) {
	return queryPosts(ctx, d, `SELECT `+postColumns+` FROM posts WHERE author_id = ? ORDER BY id DESC`, authorID)
}

func GetPost(ctx context.Context, d *db.DB, id string) (*Post, error) {
	return scanPost(d.QueryRowContext(ctx, d.Rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id))
}

// CreatePost stores a post owned by authorID. The author's current username
// is copied into AuthorName.
func CreatePost(ctx context.Context, d *db.DB, authorID string, in NewPost) (*Post, error) {
	v := &ValidationError{}
	checkTitle(v, in.Title)
	checkImageURL(v, in.ImageURL)
	category := CategoryGallery
	if strings.TrimSpace(in.Category) != "" {
		c, err := ParseCategory(in.Category)
		if err != nil {
			v.Problems = append(v.Problems, err.(*ValidationError).Problems...)
		}
		category = c
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	var post *Post
	err := d.InTx(ctx, func(tx *sql.Tx) error {
		var authorName string
		err := tx.QueryRowContext(ctx, d.Rebind(`SELECT username FROM users WHERE id = ?`), authorID).Scan(&authorName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		p := &Post{
			ID:          ulid.Make().String(),
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			ImageURL:    in.ImageURL,
			Category:    category,
			AuthorID:    authorID,
			AuthorName:  authorName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err = tx.ExecContext(ctx, d.Rebind(`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`),
			p.ID, p.Title, p.Description, p.ImageURL, p.Category, p.AuthorID, p.AuthorName, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// lockOwnedPost loads a post inside tx and checks that callerID wrote it.
func lockOwnedPost(ctx context.Context, d *db.DB, tx *sql.Tx, id, callerID string) (*Post, error) {
	p, err := scanPost(tx.QueryRowContext(ctx, d.Rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`+d.ForUpdate()), id))
	if err != nil {
		return nil, err
	}
	if p.AuthorID != callerID {
		return nil, ErrForbidden
	}
	return p, nil
}

// UpdatePost applies patch to a post owned by callerID. Fields left nil keep
// their current value.
func UpdatePost(ctx context.Context, d *db.DB, id, callerID string, patch PostPatch) (*Post, error) {
	v := &ValidationError{}
	if patch.Title != nil {
		checkTitle(v, *patch.Title)
	}
	if patch.ImageURL != nil {
		checkImageURL(v, *patch.ImageURL)
	}
	var category Category
	if patch.Category != nil {
		c, err := ParseCategory(*patch.Category)
		if err != nil {
			v.Problems = append(v.Problems, err.(*ValidationError).Problems...)
		}
		category = c
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	var updated *Post
	err := d.InTx(ctx, func(tx *sql.Tx) error {
		p, err := lockOwnedPost(ctx, d, tx, id, callerID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.ImageURL != nil {
			p.ImageURL = *patch.ImageURL
		}
		if patch.Category != nil {
			p.Category = category
		}
		p.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx, d.Rebind(`UPDATE posts SET title = ?, description = ?, image_url = ?, category = ?, updated_at = ? WHERE id = ?`),
			p.Title, p.Description, p.ImageURL, p.Category, p.UpdatedAt, p.ID)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePost removes a post owned by callerID together with its comments and
// like ledger rows.
func DeletePost(ctx context.Context, d *db.DB, id, callerID string) error {
	return d.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockOwnedPost(ctx, d, tx, id, callerID); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM comments WHERE post_id = ?`,
			`DELETE FROM post_likes WHERE post_id = ?`,
			`DELETE FROM posts WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, d.Rebind(q), id); err != nil {
				return err
			}
		}
		return nil
	})
}
