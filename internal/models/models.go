package models

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Category string

const (
	CategoryGallery      Category = "gallery"
	CategoryVideo        Category = "video"
	CategoryFaithSharing Category = "faith-sharing"
)

// Post.AuthorName and Comment.UserName are snapshots of the username taken
// when the row was created. They are not rewritten when the user renames.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Category    Category  `json:"category"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	LikeCount   int       `json:"likeCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Like is one row of the like ledger.
type Like struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPost is the input of CreatePost. Empty Category means gallery.
type NewPost struct {
	Title       string
	Description string
	ImageURL    string
	Category    string
}

// PostPatch holds the fields an author may change. Nil fields keep their
// current value.
type PostPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	Category    *string `json:"category"`
}

type UserPatch struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}
