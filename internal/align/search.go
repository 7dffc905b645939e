package align

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/lucasnoah/cycleplan/internal/github"
)

// FileHit is a source file and how many keyword occurrences it contains.
type FileHit struct {
	Path string `json:"path"`
	Hits int    `json:"hits"`
}

// Searcher locates source files related to a set of keywords.
type Searcher interface {
	Search(ctx context.Context, keywords []string) ([]FileHit, error)
}

// Rank orders hits by count descending, then path, and keeps the first top.
func Rank(hits []FileHit, top int) []FileHit {
	ranked := make([]FileHit, 0, len(hits))
	for _, h := range hits {
		if h.Hits > 0 {
			ranked = append(ranked, h)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Hits != ranked[j].Hits {
			return ranked[i].Hits > ranked[j].Hits
		}
		return ranked[i].Path < ranked[j].Path
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

// PathFilter applies include and exclude glob patterns to slash-separated
// paths relative to the search root.
type PathFilter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewPathFilter compiles the patterns. An empty include list admits every
// path not excluded.
func NewPathFilter(include, exclude []string) (*PathFilter, error) {
	f := &PathFilter{}
	for _, p := range include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile include pattern %q: %w", p, err)
		}
		f.include = append(f.include, g)
	}
	for _, p := range exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, g)
	}
	return f, nil
}

// Match reports whether rel should be searched.
func (f *PathFilter) Match(rel string) bool {
	if f.excluded(rel) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a whole directory is excluded.
func (f *PathFilter) SkipDir(rel string) bool {
	return f.excluded(rel + "/")
}

func (f *PathFilter) excluded(rel string) bool {
	for _, g := range f.exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// FileSearcher scans files under root on an afero filesystem. The corpus is
// read once, on first use, and searched in memory afterwards.
type FileSearcher struct {
	fs     afero.Fs
	root   string
	filter *PathFilter

	once    sync.Once
	corpus  map[string]string
	loadErr error
}

// NewFileSearcher creates a FileSearcher.
func NewFileSearcher(fs afero.Fs, root string, filter *PathFilter) *FileSearcher {
	return &FileSearcher{fs: fs, root: root, filter: filter}
}

func (s *FileSearcher) load() {
	s.corpus = make(map[string]string)
	s.loadErr = afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && s.filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.filter.Match(rel) {
			return nil
		}
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		s.corpus[rel] = strings.ToLower(string(data))
		return nil
	})
}

// Search counts case-insensitive keyword occurrences in every matching file.
func (s *FileSearcher) Search(ctx context.Context, keywords []string) ([]FileHit, error) {
	s.once.Do(s.load)
	if s.loadErr != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, s.loadErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits []FileHit
	for path, content := range s.corpus {
		n := 0
		for _, kw := range keywords {
			if kw == "" {
				continue
			}
			n += strings.Count(content, strings.ToLower(kw))
		}
		if n > 0 {
			hits = append(hits, FileHit{Path: path, Hits: n})
		}
	}
	return hits, nil
}

// GitGrepSearcher counts matches with git grep in a checkout.
type GitGrepSearcher struct {
	git    github.GitRunner
	dir    string
	filter *PathFilter
}

// NewGitGrepSearcher creates a GitGrepSearcher.
func NewGitGrepSearcher(git github.GitRunner, dir string, filter *PathFilter) *GitGrepSearcher {
	return &GitGrepSearcher{git: git, dir: dir, filter: filter}
}

// Search runs one git grep over all keywords. git grep -c reports matching
// lines per file, so a line with two keywords counts once.
func (s *GitGrepSearcher) Search(ctx context.Context, keywords []string) ([]FileHit, error) {
	args := []string{"grep", "-c", "-i", "-F"}
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		args = append(args, "-e", kw)
		n++
	}
	if n == 0 {
		return nil, nil
	}

	out, err := s.git.RunGit(ctx, s.dir, args...)
	if err != nil {
		// git grep exits 1 with no output when nothing matches
		if strings.TrimSpace(out) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("git grep: %w", err)
	}
	return parseGrepCounts(out, s.filter), nil
}

func parseGrepCounts(out string, filter *PathFilter) []FileHit {
	var hits []FileHit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			continue
		}
		path := filepath.ToSlash(line[:idx])
		count, err := strconv.Atoi(line[idx+1:])
		if err != nil || count == 0 {
			continue
		}
		if filter != nil && !filter.Match(path) {
			continue
		}
		hits = append(hits, FileHit{Path: path, Hits: count})
	}
	return hits
}
