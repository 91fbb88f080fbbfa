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

// AddComment attaches a comment by authorID to postID, copying the author's
// current username into UserName.
func AddComment(ctx context.Context, d *db.DB, postID, authorID, content string) (*Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, invalid("content is required")
	}
	var comment *Comment
	err := d.InTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, d.Rebind(`SELECT 1 FROM posts WHERE id = ?`), postID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var userName string
		err = tx.QueryRowContext(ctx, d.Rebind(`SELECT username FROM users WHERE id = ?`), authorID).Scan(&userName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c := &Comment{
			ID:        ulid.Make().String(),
			PostID:    postID,
			UserID:    authorID,
			UserName:  userName,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		}
		_, err = tx.ExecContext(ctx, d.Rebind(`INSERT INTO comments (id, post_id, user_id, user_name, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
			c.ID, c.PostID, c.UserID, c.UserName, c.Content, c.CreatedAt)
		if err != nil {
			return err
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns the comments of postID oldest first.
func ListComments(ctx context.Context, d *db.DB, postID string) ([]Comment, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(`SELECT id, post_id, user_id, user_name, content, created_at FROM comments WHERE post_id = ? ORDER BY id ASC`), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cs := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.UserName, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		cs = append(cs, c)
	}
	return cs, rows.Err()
}
