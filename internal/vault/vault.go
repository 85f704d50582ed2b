// Package vault exposes Obsidian note operations as MCP tools over a
// vault root directory.
//
// All note paths are given relative to the vault root and resolved
// inside it; the ".md" extension is appended when missing. Writes are
// last-writer-wins, matching how Obsidian itself treats concurrent
// edits of the same file.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vault is a handle on a note vault. The root is validated once at
// group registration; the templates directory is only checked when a
// template operation runs.
type Vault struct {
	root         string
	templatesDir string
}

// NoteInfo is the file metadata reported alongside note operations.
type NoteInfo struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// Match is one matching line from a content search.
type Match struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// SearchResult is one note matching a content search.
type SearchResult struct {
	Path       string  `json:"path"`
	Matches    []Match `json:"matches"`
	MatchCount int     `json:"match_count"`
	Size       int64   `json:"size"`
	Modified   string  `json:"modified"`
}

// Metadata is the extended note metadata returned without content.
type Metadata struct {
	Path           string         `json:"path"`
	SizeBytes      int64          `json:"size_bytes"`
	Modified       string         `json:"modified"`
	WordCount      int            `json:"word_count"`
	LineCount      int            `json:"line_count"`
	HasFrontmatter bool           `json:"has_frontmatter"`
	Frontmatter    map[string]any `json:"frontmatter,omitempty"`
}

// Open returns a Vault over root. root must exist as a directory.
func Open(root, templatesDir string) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vault path does not exist: %s", root)
		}
		return nil, fmt.Errorf("checking vault path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", root)
	}
	return &Vault{root: root, templatesDir: templatesDir}, nil
}

// notePath resolves a note name to an absolute path inside the vault,
// appending ".md" when missing and rejecting paths that escape the
// root.
func (v *Vault) notePath(name string) (string, error) {
	if name == "" {
		return "", errors.New("note path is empty")
	}
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	full := filepath.Join(v.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(v.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("note path escapes the vault: %s", name)
	}
	return full, nil
}

// relPath converts an absolute path back to the vault-relative,
// slash-separated form used in results.
func (v *Vault) relPath(full string) string {
	rel, err := filepath.Rel(v.root, full)
	if err != nil {
		return full
	}
	return filepath.ToSlash(rel)
}

func fileInfo(path string, rel string) (NoteInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return NoteInfo{}, err
	}
	return NoteInfo{
		Path:     rel,
		Size:     st.Size(),
		Modified: st.ModTime().Format(time.RFC3339),
	}, nil
}

// Read returns a note's content and metadata.
func (v *Vault) Read(name string) (string, NoteInfo, error) {
	full, err := v.notePath(name)
	if err != nil {
		return "", NoteInfo{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NoteInfo{}, fmt.Errorf("Note not found: %s", name)
		}
		return "", NoteInfo{}, err
	}
	info, err := fileInfo(full, v.relPath(full))
	if err != nil {
		return "", NoteInfo{}, err
	}
	return string(data), info, nil
}

// Create writes a new note. frontmatter, when non-empty, is serialized
// as YAML between "---" fences ahead of the content. Refuses to
// overwrite an existing note unless overwrite is set.
func (v *Vault) Create(name, content string, overwrite bool, frontmatter map[string]any) (NoteInfo, error) {
	full, err := v.notePath(name)
	if err != nil {
		return NoteInfo{}, err
	}
	if _, err := os.Stat(full); err == nil && !overwrite {
		return NoteInfo{}, fmt.Errorf("Note already exists: %s. Set overwrite to replace it.", name)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return NoteInfo{}, fmt.Errorf("creating directory: %w", err)
	}

	final := content
	if len(frontmatter) > 0 {
		fm, err := yaml.Marshal(frontmatter)
		if err != nil {
			return NoteInfo{}, fmt.Errorf("serializing frontmatter: %w", err)
		}
		final = "---\n" + string(fm) + "---\n\n" + content
	}

	if err := os.WriteFile(full, []byte(final), 0o644); err != nil {
		return NoteInfo{}, err
	}
	return fileInfo(full, v.relPath(full))
}

// Replace overwrites an existing note's content entirely.
func (v *Vault) Replace(name, content string) (NoteInfo, error) {
	full, err := v.notePath(name)
	if err != nil {
		return NoteInfo{}, err
	}
	if _, err := os.Stat(full); err != nil {
		return NoteInfo{}, fmt.Errorf("Note not found: %s", name)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return NoteInfo{}, err
	}
	return fileInfo(full, v.relPath(full))
}

// Append adds content to the end of an existing note, optionally
// preceded by a newline.
func (v *Vault) Append(name, content string, addNewline bool) (NoteInfo, error) {
	full, err := v.notePath(name)
	if err != nil {
		return NoteInfo{}, err
	}
	if _, err := os.Stat(full); err != nil {
		return NoteInfo{}, fmt.Errorf("Note not found: %s", name)
	}

	f, err := os.OpenFile(full, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return NoteInfo{}, err
	}
	if addNewline {
		content = "\n" + content
	}
	_, werr := f.WriteString(content)
	cerr := f.Close()
	if werr != nil {
		return NoteInfo{}, werr
	}
	if cerr != nil {
		return NoteInfo{}, cerr
	}
	return fileInfo(full, v.relPath(full))
}

// List returns every note under folder (vault root when empty),
// sorted by path.
func (v *Vault) List(folder string) ([]NoteInfo, error) {
	searchPath := v.root
	if folder != "" {
		full := filepath.Join(v.root, filepath.FromSlash(folder))
		rel, err := filepath.Rel(v.root, full)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("folder escapes the vault: %s", folder)
		}
		if _, err := os.Stat(full); err != nil {
			return nil, fmt.Errorf("Folder not found: %s", folder)
		}
		searchPath = full
	}

	notes := []NoteInfo{}
	err := filepath.WalkDir(searchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil // unreadable entries are skipped, not fatal
		}
		info, err := fileInfo(path, v.relPath(path))
		if err != nil {
			return nil
		}
		notes = append(notes, info)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, nil
}

// Search scans every note for the query, line by line. Results are
// ordered by match count descending, then path, so output is
// deterministic. Matching lines are truncated to 200 characters.
func (v *Vault) Search(query string, caseSensitive bool) ([]SearchResult, error) {
	needle := query
	if !caseSensitive {
		needle = strings.ToLower(query)
	}

	results := []SearchResult{}
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var matches []Match
		for i, line := range strings.Split(string(data), "\n") {
			hay := line
			if !caseSensitive {
				hay = strings.ToLower(line)
			}
			if strings.Contains(hay, needle) {
				if len(line) > 200 {
					line = line[:200]
				}
				matches = append(matches, Match{Line: i + 1, Content: line})
			}
		}
		if len(matches) == 0 {
			return nil
		}

		st, err := os.Stat(path)
		if err != nil {
			return nil
		}
		results = append(results, SearchResult{
			Path:       v.relPath(path),
			Matches:    matches,
			MatchCount: len(matches),
			Size:       st.Size(),
			Modified:   st.ModTime().Format(time.RFC3339),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].MatchCount != results[j].MatchCount {
			return results[i].MatchCount > results[j].MatchCount
		}
		return results[i].Path < results[j].Path
	})
	return results, nil
}

// Delete moves a note aside to "<path>.trash", falling back to a
// permanent delete when the rename fails. Returns the final path and
// whether the delete was permanent.
func (v *Vault) Delete(name string) (string, bool, error) {
	full, err := v.notePath(name)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(full); err != nil {
		return "", false, fmt.Errorf("Note not found: %s", name)
	}

	trash := full + ".trash"
	if err := os.Rename(full, trash); err == nil {
		return trash, false, nil
	}
	if err := os.Remove(full); err != nil {
		return "", false, err
	}
	return full, true, nil
}

// Stat returns extended metadata for a note without returning its
// content: size, word and line counts, and parsed front matter.
func (v *Vault) Stat(name string) (Metadata, error) {
	full, err := v.notePath(name)
	if err != nil {
		return Metadata{}, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("Note not found: %s", name)
		}
		return Metadata{}, err
	}
	st, err := os.Stat(full)
	if err != nil {
		return Metadata{}, err
	}

	content := string(data)
	md := Metadata{
		Path:      v.relPath(full),
		SizeBytes: st.Size(),
		Modified:  st.ModTime().Format(time.RFC3339),
		WordCount: len(strings.Fields(content)),
		LineCount: len(strings.Split(content, "\n")),
	}
	if fm, ok := parseFrontmatter(content); ok {
		md.HasFrontmatter = true
		md.Frontmatter = fm
	}
	return md, nil
}

// CreateFromTemplate instantiates a template from the vault's templates
// directory, substituting {{title}} with the note's base name and
// {{date}} with today's date. Template problems are call-time errors;
// the templates directory is never validated at registration.
func (v *Vault) CreateFromTemplate(templateName, name string, overwrite bool) (NoteInfo, error) {
	dir := filepath.Join(v.root, filepath.FromSlash(v.templatesDir))
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return NoteInfo{}, fmt.Errorf("templates directory does not exist: %s", v.templatesDir)
	}

	if !strings.HasSuffix(templateName, ".md") {
		templateName += ".md"
	}
	data, err := os.ReadFile(filepath.Join(dir, templateName))
	if err != nil {
		if os.IsNotExist(err) {
			return NoteInfo{}, fmt.Errorf("Template not found: %s", templateName)
		}
		return NoteInfo{}, err
	}

	title := strings.TrimSuffix(filepath.Base(filepath.FromSlash(name)), ".md")
	content := strings.NewReplacer(
		"{{title}}", title,
		"{{date}}", time.Now().Format("2006-01-02"),
	).Replace(string(data))

	return v.Create(name, content, overwrite, nil)
}

// parseFrontmatter extracts the YAML block between leading "---"
// fences. Returns ok=false when there is no well-formed block.
func parseFrontmatter(content string) (map[string]any, bool) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, false
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, false
	}
	var fm map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		// Malformed YAML still counts as front matter being present.
		return map[string]any{}, true
	}
	return fm, true
}
