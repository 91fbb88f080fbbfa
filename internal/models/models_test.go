package models

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"community/internal/db"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(string(db.SQLite), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func mustUser(t *testing.T, d *db.DB, name string) *User {
	t.Helper()
	u, err := CreateUser(context.Background(), d, name, name+"@x.com", "secret1")
	require.NoError(t, err)
	return u
}

func mustPost(t *testing.T, d *db.DB, author *User, title string) *Post {
	t.Helper()
	p, err := CreatePost(context.Background(), d, author.ID, NewPost{Title: title, ImageURL: "https://x/y.jpg"})
	require.NoError(t, err)
	return p
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	u, err := CreateUser(ctx, d, "alice", "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	_, err = CreateUser(ctx, d, "alice", "other@x.com", "secret1")
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = CreateUser(ctx, d, "alice2", "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = CreateUser(ctx, d, "al", "not-an-email", "123")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 3)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")

	u, err := Authenticate(ctx, d, "alice@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = Authenticate(ctx, d, "alice@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = Authenticate(ctx, d, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")

	name := "alicia"
	_, err := UpdateUser(ctx, d, alice.ID, bob.ID, UserPatch{Username: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := UpdateUser(ctx, d, alice.ID, alice.ID, UserPatch{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, alice.Email, u.Email)

	// snapshot keeps the name the post was written under
	p, err := GetPost(ctx, d, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.AuthorName)

	taken := "bob"
	_, err = UpdateUser(ctx, d, alice.ID, alice.ID, UserPatch{Username: &taken})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	pw := "newsecret"
	_, err = UpdateUser(ctx, d, alice.ID, alice.ID, UserPatch{Password: &pw})
	require.NoError(t, err)
	_, err = Authenticate(ctx, d, "alice@x.com", "newsecret")
	assert.NoError(t, err)
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	mustUser(t, d, "carol")

	u, err := EnsureUser(ctx, d, "firebase-uid-1", "carol", "carol@y.com")
	require.NoError(t, err)
	assert.Equal(t, "firebase-uid-1", u.ID)
	assert.Equal(t, "carol-firebase", u.Username)

	again, err := EnsureUser(ctx, d, "firebase-uid-1", "someone else", "")
	require.NoError(t, err)
	assert.Equal(t, u.Username, again.Username)

	_, err = Authenticate(ctx, d, "carol@y.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreatePost(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")

	p, err := CreatePost(ctx, d, alice.ID, NewPost{Title: "My Guitar", ImageURL: "https://x/y.jpg"})
	require.NoError(t, err)
	assert.Equal(t, CategoryGallery, p.Category)
	assert.Equal(t, "alice", p.AuthorName)
	assert.Equal(t, 0, p.LikeCount)
	assert.Equal(t, "", p.Description)

	p, err = CreatePost(ctx, d, alice.ID, NewPost{Title: "간증", ImageURL: "http://x/z.png", Category: "신앙나눔"})
	require.NoError(t, err)
	assert.Equal(t, CategoryFaithSharing, p.Category)

	tests := []struct {
		name string
		in   NewPost
	}{
		{"empty title", NewPost{Title: "  ", ImageURL: "https://x/y.jpg"}},
		{"bad url", NewPost{Title: "t", ImageURL: "not a url"}},
		{"relative url", NewPost{Title: "t", ImageURL: "/img/y.jpg"}},
		{"unknown category", NewPost{Title: "t", ImageURL: "https://x/y.jpg", Category: "memes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreatePost(ctx, d, alice.ID, tt.in)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}

	_, err = CreatePost(ctx, d, "missing-user", NewPost{Title: "t", ImageURL: "https://x/y.jpg"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")

	first := mustPost(t, d, alice, "first")
	video, err := CreatePost(ctx, d, bob.ID, NewPost{Title: "second", ImageURL: "https://x/v.jpg", Category: "video"})
	require.NoError(t, err)
	third := mustPost(t, d, alice, "third")

	all, err := ListPosts(ctx, d, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, video.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	videos, err := ListPosts(ctx, d, "video")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, video.ID, videos[0].ID)

	memes, err := ListPosts(ctx, d, "memes")
	require.NoError(t, err)
	assert.NotNil(t, memes)
	assert.Empty(t, memes)

	mine, err := ListPostsByAuthor(ctx, d, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := ListPostsByAuthor(ctx, d, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")

	title := "Stolen"
	_, err := UpdatePost(ctx, d, post.ID, bob.ID, PostPatch{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = UpdatePost(ctx, d, "missing", alice.ID, PostPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	desc := "Taylor 814ce"
	p, err := UpdatePost(ctx, d, post.ID, alice.ID, PostPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "My Guitar", p.Title)
	assert.Equal(t, "Taylor 814ce", p.Description)
	assert.Equal(t, post.ImageURL, p.ImageURL)
	assert.Equal(t, CategoryGallery, p.Category)

	empty := ""
	_, err = UpdatePost(ctx, d, post.ID, alice.ID, PostPatch{Title: &empty})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDeletePostCascades(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")
	other := mustPost(t, d, alice, "Other")

	_, err := AddComment(ctx, d, post.ID, bob.ID, "nice")
	require.NoError(t, err)
	_, err = AddComment(ctx, d, other.ID, bob.ID, "also nice")
	require.NoError(t, err)
	_, _, err = ToggleLike(ctx, d, post.ID, bob.ID)
	require.NoError(t, err)
	_, _, err = ToggleLike(ctx, d, other.ID, bob.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, DeletePost(ctx, d, post.ID, bob.ID), ErrForbidden)
	require.NoError(t, DeletePost(ctx, d, post.ID, alice.ID))

	_, err = GetPost(ctx, d, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var orphans int
	require.NoError(t, d.QueryRow(`SELECT (SELECT COUNT(*) FROM comments WHERE post_id = ?) + (SELECT COUNT(*) FROM post_likes WHERE post_id = ?)`, post.ID, post.ID).Scan(&orphans))
	assert.Zero(t, orphans)

	comments, err := ListComments(ctx, d, other.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	n, err := CountLikes(ctx, d, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, DeletePost(ctx, d, post.ID, alice.ID), ErrNotFound)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")

	_, err := AddComment(ctx, d, post.ID, bob.ID, " \t\n")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = AddComment(ctx, d, "missing", bob.ID, "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 3; i++ {
		_, err := AddComment(ctx, d, post.ID, bob.ID, fmt.Sprintf("comment %d", i))
		require.NoError(t, err)
	}
	cs, err := ListComments(ctx, d, post.ID)
	require.NoError(t, err)
	require.Len(t, cs, 3)
	for i, c := range cs {
		assert.Equal(t, fmt.Sprintf("comment %d", i), c.Content)
		assert.Equal(t, "bob", c.UserName)
	}
}

func TestToggleLike(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")

	liked, count, err := ToggleLike(ctx, d, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, count)

	has, err := HasLiked(ctx, d, post.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, has)

	likes, err := ListLikes(ctx, d, post.ID)
	require.NoError(t, err)
	require.Len(t, likes, 1)
	assert.Equal(t, post.ID, likes[0].PostID)
	assert.Equal(t, bob.ID, likes[0].UserID)
	assert.False(t, likes[0].CreatedAt.IsZero())

	liked, count, err = ToggleLike(ctx, d, post.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 0, count)

	p, err := GetPost(ctx, d, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.LikeCount)

	likes, err = ListLikes(ctx, d, post.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)

	_, _, err = ToggleLike(ctx, d, "missing", bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func assertCounterMatchesLedger(t *testing.T, d *db.DB, postID string) int {
	t.Helper()
	p, err := GetPost(context.Background(), d, postID)
	require.NoError(t, err)
	n, err := CountLikes(context.Background(), d, postID)
	require.NoError(t, err)
	assert.Equal(t, n, p.LikeCount)
	return p.LikeCount
}

func TestToggleLikeConcurrentUsers(t *testing.T) {
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	post := mustPost(t, d, alice, "My Guitar")

	users := make([]*User, 12)
	for i := range users {
		users[i] = mustUser(t, d, fmt.Sprintf("user%02d", i))
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, u := range users {
		g.Go(func() error {
			_, _, err := ToggleLike(ctx, d, post.ID, u.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, len(users), assertCounterMatchesLedger(t, d, post.ID))
}

func TestToggleLikeConcurrentSameUser(t *testing.T) {
	d := newTestDB(t)
	alice := mustUser(t, d, "alice")
	bob := mustUser(t, d, "bob")
	post := mustPost(t, d, alice, "My Guitar")

	const toggles = 15
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < toggles; i++ {
		g.Go(func() error {
			_, _, err := ToggleLike(ctx, d, post.ID, bob.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, toggles%2, assertCounterMatchesLedger(t, d, post.ID))
}
