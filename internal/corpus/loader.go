package corpus

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hannadev/blogsearch/internal/log"
)

// frontmatter holds the YAML header fields recognized on blog posts.
type frontmatter struct {
	Title        string   `yaml:"title"`
	TitleEn      string   `yaml:"titleEn"`
	Description  string   `yaml:"description"`
	Tags         []string `yaml:"tags"`
	Draft        bool     `yaml:"draft"`
	CanonicalURL string   `yaml:"canonicalURL"`
}

// Loader reads blog posts and custom documents from disk.
type Loader struct {
	contentDir     string
	customDocsPath string
	logger         log.Logger
}

// NewLoader creates a Loader.
// customDocsPath may point to a missing file; custom documents are optional.
func NewLoader(contentDir, customDocsPath string, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{
		contentDir:     contentDir,
		customDocsPath: customDocsPath,
		logger:         logger,
	}
}

// Load returns the merged blog+custom corpus.
// Duplicate ids or URLs are dropped with a warning, keeping first-seen entries.
func (l *Loader) Load() ([]Document, error) {
	blogDocs, err := l.loadBlog()
	if err != nil {
		return nil, fmt.Errorf("loading blog documents: %w", err)
	}

	customDocs := l.loadCustom()

	docs, dropped := dedupe(append(blogDocs, customDocs...))
	if len(dropped) > 0 {
		l.logger.Warn("dropped documents with duplicate id or url", "ids", dropped)
	}

	l.logger.Debug("corpus loaded", "blog", len(blogDocs), "custom", len(customDocs), "total", len(docs))
	return docs, nil
}

// loadBlog walks the content directory and parses every markdown file.
// Draft posts are skipped.
func (l *Loader) loadBlog() ([]Document, error) {
	root, err := os.OpenRoot(l.contentDir)
	if err != nil {
		return nil, fmt.Errorf("opening content dir: %w", err)
	}
	defer func() {
		_ = root.Close()
	}()

	var docs []Document

	walkErr := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".md" && ext != ".mdx" {
			return nil
		}

		raw, err := root.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		doc, draft, err := parsePost(path, raw)
		if err != nil {
			l.logger.Warn("skipping malformed post", "path", path, "error", err)
			return nil
		}
		if draft {
			return nil
		}

		docs = append(docs, doc)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return docs, nil
}

// parsePost splits frontmatter from the markdown body and builds a Document.
// The slug is the file name without extension; the canonical URL defaults to
// /posts/{slug}/ unless the frontmatter overrides it.
func parsePost(path string, raw []byte) (Document, bool, error) {
	fm, body, err := splitFrontmatter(raw)
	if err != nil {
		return Document{}, false, err
	}

	slug := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	rawPath := fm.CanonicalURL
	if rawPath == "" {
		rawPath = "/posts/" + slug
	}

	doc := Document{
		ID:          slug,
		Title:       fm.Title,
		TitleEn:     fm.TitleEn,
		Description: fm.Description,
		Tags:        fm.Tags,
		URL:         NormalizePath(rawPath),
		Content:     body,
		Source:      SourceBlog,
	}
	if err := doc.validate(); err != nil {
		return Document{}, false, err
	}

	return doc, fm.Draft, nil
}

// splitFrontmatter separates the leading YAML block (delimited by ---) from
// the body. Files without a frontmatter block are returned as body only.
func splitFrontmatter(raw []byte) (frontmatter, string, error) {
	const delim = "---\n"

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.HasPrefix(text, delim) {
		return frontmatter{}, text, nil
	}

	rest := text[len(delim):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return frontmatter{}, "", fmt.Errorf("unterminated frontmatter")
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return frontmatter{}, "", fmt.Errorf("parsing frontmatter: %w", err)
	}

	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return fm, body, nil
}

// customDocumentInput is the JSON shape of a manually curated document.
// External input: every entry is validated before entering the corpus.
type customDocumentInput struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TitleEn     string   `json:"titleEn"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	Content     string   `json:"content"`
}

// loadCustom reads the curated custom-document file.
// A missing or malformed file yields an empty set, never an error; entries
// failing validation are skipped with a warning.
func (l *Loader) loadCustom() []Document {
	raw, err := os.ReadFile(l.customDocsPath)
	if err != nil {
		l.logger.Debug("no custom documents", "path", l.customDocsPath)
		return nil
	}

	var entries []customDocumentInput
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.logger.Warn("malformed custom documents file", "path", l.customDocsPath, "error", err)
		return nil
	}

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = "custom:" + Slugify(entry.Title)
		}

		tags := entry.Tags
		if len(tags) == 0 {
			tags = []string{"custom"}
		}

		url := entry.URL
		if url == "" {
			url = "/rag/custom/" + id + "/"
		}

		doc := Document{
			ID:          id,
			Title:       entry.Title,
			TitleEn:     entry.TitleEn,
			Description: entry.Description,
			Tags:        tags,
			URL:         NormalizePath(url),
			Content:     entry.Content,
			Source:      SourceCustom,
		}
		if err := doc.validate(); err != nil {
			l.logger.Warn("skipping invalid custom document", "error", err)
			continue
		}
		docs = append(docs, doc)
	}

	return docs
}

// Slugify converts a title into a URL-safe slug.
func Slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
