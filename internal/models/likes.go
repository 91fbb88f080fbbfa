package models

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"community/internal/db"
)

// ToggleLike flips the like state of (postID, userID). The ledger row and the
// post's like_count change in the same transaction with the post row locked,
// so like_count always equals the number of ledger rows for the post.
func ToggleLike(ctx context.Context, d *db.DB, postID, userID string) (liked bool, likeCount int, err error) {
	err = d.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, d.Rebind(`SELECT like_count FROM posts WHERE id = ?`+d.ForUpdate()), postID).Scan(&likeCount)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, d.Rebind(`DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`), postID, userID)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}

		delta := -1
		if removed == 0 {
			_, err = tx.ExecContext(ctx, d.Rebind(`INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)`),
				postID, userID, time.Now().UTC())
			if err != nil {
				if _, dup := uniqueViolation(err); dup {
					return ErrConflict
				}
				return err
			}
			delta = 1
		}

		err = tx.QueryRowContext(ctx, d.Rebind(`UPDATE posts SET like_count = like_count + ? WHERE id = ? RETURNING like_count`), delta, postID).Scan(&likeCount)
		if err != nil {
			return err
		}
		liked = delta > 0
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return liked, likeCount, nil
}

func HasLiked(ctx context.Context, d *db.DB, postID, userID string) (bool, error) {
	var n int
	err := d.QueryRowContext(ctx, d.Rebind(`SELECT COUNT(*) FROM post_likes WHERE post_id = ? AND user_id = ?`), postID, userID).Scan(&n)
	return n > 0, err
}

// ListLikes returns the ledger rows for postID, oldest first.
func ListLikes(ctx context.Context, d *db.DB, postID string) ([]Like, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(`SELECT post_id, user_id, created_at FROM post_likes
		WHERE post_id = ? ORDER BY created_at, user_id`), postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	likes := []Like{}
	for rows.Next() {
		var l Like
		if err := rows.Scan(&l.PostID, &l.UserID, &l.CreatedAt); err != nil {
			return nil, err
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}

// CountLikes returns the number of ledger rows for postID.
func CountLikes(ctx context.Context, d *db.DB, postID string) (int, error) {
	var n int
	err := d.QueryRowContext(ctx, d.Rebind(`SELECT COUNT(*) FROM post_likes WHERE post_id = ?`), postID).Scan(&n)
	return n, err
}
