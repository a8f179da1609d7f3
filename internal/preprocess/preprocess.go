// Package preprocess resolves GET-directive textual inclusion before a
// source file reaches the lexer (spec.md §1 treats GET as an external
// collaborator; this compiler folds it in so E1–E6 run as whole
// programs end to end). A `GET "path"` line is replaced in place by
// the named file's contents; repeated GETs of the same resolved path
// are elided (include-once), and a GET chain that revisits a file
// still open is reported as a cycle rather than recursing forever.
package preprocess

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/albanread/RevivalBCPL-sub000/internal/diag"
)

// FileReader abstracts source retrieval so tests can run against an
// in-memory set of files instead of the real filesystem.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// osFileReader reads from the real filesystem; GET paths reach it
// already resolved relative to the including file's directory.
type osFileReader struct{}

func (osFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Preprocessor expands GET directives, tracking which resolved paths
// have already been included (include-once) and which are currently
// open on the inclusion stack (cycle detection).
type Preprocessor struct {
	reader FileReader
}

// New builds a Preprocessor reading from the real filesystem.
func New() *Preprocessor {
	return &Preprocessor{reader: osFileReader{}}
}

// NewWithReader builds a Preprocessor against a custom FileReader,
// for tests that don't want to touch disk.
func NewWithReader(r FileReader) *Preprocessor {
	return &Preprocessor{reader: r}
}

// Process reads path and returns its text with every GET directive
// recursively replaced by the target file's (also-processed) text.
func (p *Preprocessor) Process(path string) (string, error) {
	included := map[string]bool{}
	var sb strings.Builder
	if err := p.expand(path, nil, included, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (p *Preprocessor) expand(path string, stack []string, included map[string]bool, out *strings.Builder) error {
	resolved := filepath.Clean(path)
	for _, open := range stack {
		if open == resolved {
			return diag.New(diag.Resource, "preprocess: GET cycle detected: %s", cycleTrail(append(stack, resolved)))
		}
	}
	if included[resolved] {
		return nil
	}
	included[resolved] = true

	data, err := p.reader.ReadFile(resolved)
	if err != nil {
		return diag.New(diag.Resource, "preprocess: cannot read %q: %v", resolved, err)
	}

	stack = append(stack, resolved)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		target, ok := getDirectiveTarget(line)
		if !ok {
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		includePath := target
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(filepath.Dir(resolved), includePath)
		}
		if err := p.expand(includePath, stack, included, out); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return diag.New(diag.Resource, "preprocess: reading %q: %v", resolved, err)
	}
	return nil
}

// getDirectiveTarget recognizes a line whose only content is a GET
// directive (`GET "path"`, optionally surrounded by whitespace) and
// returns its unquoted path.
func getDirectiveTarget(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "GET") {
		return "", false
	}
	rest := strings.TrimSpace(trimmed[len("GET"):])
	if len(rest) < 2 || rest[0] != '"' {
		return "", false
	}
	unquoted, err := strconv.Unquote(rest)
	if err != nil {
		return "", false
	}
	return unquoted, true
}

func cycleTrail(stack []string) string {
	return strings.Join(stack, " -> ")
}
