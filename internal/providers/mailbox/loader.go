package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

const maxMessageSize = 10 * 1024 * 1024

// Load reads emails from a JSON file, a single .eml file, or a directory
// containing either. Results are sorted by timestamp.
func Load(ctx context.Context, path string) ([]core.Email, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var emails []core.Email
	if info.IsDir() {
		emails, err = loadDir(ctx, path)
	} else {
		emails, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(emails, func(i, j int) bool {
		return emails[i].Timestamp.Before(emails[j].Timestamp)
	})

	log.FromCtx(ctx).Debug().
		Str("path", path).
		Int("emails", len(emails)).
		Msg("mailbox loaded")

	return emails, nil
}

func loadDir(ctx context.Context, dir string) ([]core.Email, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var emails []core.Email
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !isMailFile(name) {
			log.FromCtx(ctx).Debug().Str("file", name).Msg("skipping non-mail file")
			continue
		}

		loaded, err := loadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		emails = append(emails, loaded...)
	}
	return emails, nil
}

func loadFile(path string) ([]core.Email, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var emails []core.Email
		if err := json.NewDecoder(f).Decode(&emails); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return normalizeThreads(emails), nil
	}

	email, err := ParseMessage(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if email.ID == "" {
		email.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if email.ThreadID == "" {
		email.ThreadID = email.ID
	}
	return []core.Email{email}, nil
}

// normalizeThreads fills in missing thread ids with the id of the first email
// of the file.
func normalizeThreads(emails []core.Email) []core.Email {
	if len(emails) == 0 {
		return emails
	}
	root := emails[0].ThreadID
	if root == "" {
		root = emails[0].ID
	}
	for i := range emails {
		if emails[i].ThreadID == "" {
			emails[i].ThreadID = root
		}
	}
	return emails
}
