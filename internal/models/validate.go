package models

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// The Korean board labels are accepted on input.
var categoryAliases = map[string]Category{
	"gallery":       CategoryGallery,
	"video":         CategoryVideo,
	"faith-sharing": CategoryFaithSharing,
	"갤러리":           CategoryGallery,
	"영상":            CategoryVideo,
	"신앙나눔":          CategoryFaithSharing,
}

// ParseCategory normalizes a category name. The empty string is rejected;
// callers apply the default themselves.
func ParseCategory(s string) (Category, error) {
	c, ok := categoryAliases[strings.TrimSpace(s)]
	if !ok {
		return "", invalid("category must be one of gallery, video, faith-sharing")
	}
	return c, nil
}

func checkUsername(v *ValidationError, username string) {
	n := utf8.RuneCountInString(username)
	if n < 3 || n > 50 {
		v.add("username must be between 3 and 50 characters")
	}
}

func checkEmail(v *ValidationError, email string) {
	if !emailRegex.MatchString(email) {
		v.add("email is not a valid address")
	}
}

func checkPassword(v *ValidationError, password string) {
	n := utf8.RuneCountInString(password)
	if n < 6 || n > 100 {
		v.add("password must be between 6 and 100 characters")
	}
}

func checkTitle(v *ValidationError, title string) {
	if strings.TrimSpace(title) == "" {
		v.add("title is required")
	}
}

func checkImageURL(v *ValidationError, raw string) {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add("imageUrl must be an absolute http(s) URL")
	}
}
