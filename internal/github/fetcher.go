// Package github reads processed page files from a GitHub repository so a
// shared corpus can be indexed without a local checkout.
package github

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/go-github/v81/github"
)

// Fetcher lists and reads processed JSON files under a repository path.
// It implements indexer.Source and indexer.Revisioner.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
}

// NewFetcher creates a fetcher for owner/repo rooted at basePath.
func NewFetcher(client *Client, owner, repo, basePath string) *Fetcher {
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: strings.Trim(basePath, "/"),
	}
}

// List recursively lists all .json files, relative to the base path.
func (f *Fetcher) List(ctx context.Context) ([]string, error) {
	files, err := f.listRecursive(ctx, f.basePath, "")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	_, dirContents, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	var files []string
	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if strings.EqualFold(path.Ext(name), ".json") {
				files = append(files, itemRelPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}

	return files, nil
}

// Read returns the decoded content of one processed file.
func (f *Fetcher) Read(ctx context.Context, name string) ([]byte, error) {
	fullPath := path.Join(f.basePath, name)

	file, _, _, err := f.client.Repositories.GetContents(ctx, f.owner, f.repo, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s is not a file", fullPath)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
	}
	return []byte(content), nil
}

// Revision returns the SHA of the latest commit touching the base path.
func (f *Fetcher) Revision(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(ctx, f.owner, f.repo, &github.CommitsListOptions{
		Path:        f.basePath,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 || commits[0].GetSHA() == "" {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}
	return commits[0].GetSHA(), nil
}
