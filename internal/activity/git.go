package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// abbrevLen is the short hash length used in activity lines.
const abbrevLen = 7

// Git reads achievements from the commit log of the repository at the
// project directory. A directory without a repository yields no
// records.
type Git struct {
	// AuthorEmail limits commits to one author. Empty means the email
	// from the repository configuration, and failing that, everyone.
	AuthorEmail string
}

var _ Source = (*Git)(nil)

// Achievements returns one record per commit from since onwards,
// newest first.
func (g *Git) Achievements(dir string, since time.Time) ([]Achievement, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("activity: open repository %s: %w", dir, err)
	}

	email := g.AuthorEmail
	if email == "" {
		if cfg, err := repo.ConfigScoped(gitconfig.GlobalScope); err == nil {
			email = cfg.User.Email
		}
	}

	head, err := repo.Head()
	if err != nil {
		// Repository without commits.
		return nil, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Since: &since})
	if err != nil {
		return nil, fmt.Errorf("activity: log %s: %w", dir, err)
	}
	defer iter.Close()

	var out []Achievement
	err = iter.ForEach(func(c *object.Commit) error {
		if email != "" && c.Author.Email != email {
			return nil
		}
		summary, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Achievement{
			ID:      c.Hash.String()[:abbrevLen],
			Summary: strings.TrimSpace(summary),
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activity: walk commits: %w", err)
	}
	return out, nil
}
