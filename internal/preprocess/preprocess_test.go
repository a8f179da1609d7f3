package preprocess_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/albanread/RevivalBCPL-sub000/internal/preprocess"
)

type memReader map[string]string

func (m memReader) ReadFile(path string) ([]byte, error) {
	text, ok := m[path]
	if !ok {
		return nil, require.AnError
	}
	return []byte(text), nil
}

func TestProcessInlinesGetDirective(t *testing.T) {
	files := memReader{
		"main.b": "LET START() BE\nGET \"lib.b\"\n$(\nWRITES(\"hi\")\n$)\n",
		"lib.b":  "MANIFEST $( K = 1 $)\n",
	}
	p := preprocess.NewWithReader(files)

	out, err := p.Process("main.b")
	require.NoError(t, err)
	require.Contains(t, out, "MANIFEST $( K = 1 $)")
	require.Contains(t, out, "WRITES(\"hi\")")
	require.NotContains(t, out, "GET")
}

func TestProcessIsIncludeOnce(t *testing.T) {
	files := memReader{
		"main.b":   "GET \"common.b\"\nGET \"common.b\"\n",
		"common.b": "MANIFEST $( K = 1 $)\n",
	}
	p := preprocess.NewWithReader(files)

	out, err := p.Process("main.b")
	require.NoError(t, err)
	require.Equal(t, 1, countOccurrences(out, "MANIFEST"))
}

func TestProcessDetectsCycle(t *testing.T) {
	files := memReader{
		"a.b": "GET \"b.b\"\n",
		"b.b": "GET \"a.b\"\n",
	}
	p := preprocess.NewWithReader(files)

	_, err := p.Process("a.b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle")
}

func TestProcessResolvesRelativeToIncludingFile(t *testing.T) {
	files := memReader{
		"dir/main.b": "GET \"sub/lib.b\"\n",
		"dir/sub/lib.b": "MANIFEST $( K = 1 $)\n",
	}
	p := preprocess.NewWithReader(files)

	out, err := p.Process("dir/main.b")
	require.NoError(t, err)
	require.Contains(t, out, "MANIFEST $( K = 1 $)")
}

func TestProcessReturnsErrorForMissingFile(t *testing.T) {
	files := memReader{"main.b": "GET \"missing.b\"\n"}
	p := preprocess.NewWithReader(files)

	_, err := p.Process("main.b")
	require.Error(t, err)
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
			i += len(needle) - 1
		}
	}
	return count
}
