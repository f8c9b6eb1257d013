package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMemory() *Memory {
	created := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	updated := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	return &Memory{
		Metadata: Metadata{
			CreatedAt: created,
			UpdatedAt: updated,
			Tags:      []string{"design", "storage"},
			Source:    "conversation",
		},
		Content: "The index files are derived state.\nRebuild them at will.\n",
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	m := validMemory()
	expires := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	m.Metadata.ExpiresAt = &expires

	raw, err := Serialize(m)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)

	assert.True(t, parsed.Metadata.CreatedAt.Equal(m.Metadata.CreatedAt))
	assert.True(t, parsed.Metadata.UpdatedAt.Equal(m.Metadata.UpdatedAt))
	assert.Equal(t, m.Metadata.Tags, parsed.Metadata.Tags)
	assert.Equal(t, m.Metadata.Source, parsed.Metadata.Source)
	require.NotNil(t, parsed.Metadata.ExpiresAt)
	assert.True(t, parsed.Metadata.ExpiresAt.Equal(expires))
	assert.Equal(t, m.Content, parsed.Content)
}

func TestSerializeOmitsAbsentExpiry(t *testing.T) {
	raw, err := Serialize(validMemory())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "expiresAt")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, parsed.Metadata.ExpiresAt)
}

func TestSerializeWireFormat(t *testing.T) {
	raw, err := Serialize(validMemory())
	require.NoError(t, err)

	lines := strings.Split(string(raw), "\n")
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "---", lines[0])
	assert.Equal(t, "createdAt: 2025-01-15T10:30:00Z", lines[1])
	assert.Equal(t, "updatedAt: 2025-02-01T09:00:00Z", lines[2])
	assert.Equal(t, "tags: [design, storage]", lines[3])
	assert.Equal(t, "source: conversation", lines[4])
	assert.Equal(t, "---", lines[5])
}

func TestSerializeEmptyTags(t *testing.T) {
	m := validMemory()
	m.Metadata.Tags = []string{}

	raw, err := Serialize(m)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tags: []")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, parsed.Metadata.Tags)
}

func TestParseBodyVerbatim(t *testing.T) {
	for _, body := range []string{"", "Hello", "Hello\n", "  indented\n\ntrailing blank\n\n"} {
		m := validMemory()
		m.Content = body
		raw, err := Serialize(m)
		require.NoError(t, err)
		parsed, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, body, parsed.Content, "body %q", body)
	}
}

func TestParseNormalizesLineEndings(t *testing.T) {
	raw, err := Serialize(validMemory())
	require.NoError(t, err)
	crlf := strings.ReplaceAll(string(raw), "\n", "\r\n")

	parsed, err := Parse([]byte(crlf))
	require.NoError(t, err)
	assert.Equal(t, validMemory().Content, parsed.Content)
	assert.Equal(t, validMemory().Metadata.Source, parsed.Metadata.Source)
}

func TestParseMissingFrontmatter(t *testing.T) {
	t.Run("no opening delimiter", func(t *testing.T) {
		_, err := Parse([]byte("just some text\n"))
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, CodeMissingFrontmatter, se.Code)
		assert.Equal(t, 1, se.Line)
	})

	t.Run("no closing delimiter", func(t *testing.T) {
		_, err := Parse([]byte("---\nsource: x\ntags: []"))
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, CodeMissingFrontmatter, se.Code)
		assert.Equal(t, 3, se.Line)
	})
}

func TestParseFieldErrors(t *testing.T) {
	frame := func(block string) []byte {
		return []byte("---\n" + block + "---\nbody")
	}
	full := func(overrides map[string]string) string {
		fields := map[string]string{
			"createdAt": "2025-01-15T10:30:00Z",
			"updatedAt": "2025-02-01T09:00:00Z",
			"tags":      "[a]",
			"source":    "test",
		}
		for k, v := range overrides {
			fields[k] = v
		}
		var sb strings.Builder
		for _, k := range []string{"createdAt", "updatedAt", "tags", "source", "expiresAt"} {
			if v, ok := fields[k]; ok {
				sb.WriteString(k + ": " + v + "\n")
			}
		}
		return sb.String()
	}

	tests := []struct {
		name      string
		block     string
		wantCode  ErrorCode
		wantField string
	}{
		{
			name:      "createdAt absent",
			block:     "updatedAt: 2025-02-01T09:00:00Z\ntags: [a]\nsource: test\n",
			wantCode:  CodeMissingField,
			wantField: "createdAt",
		},
		{
			name:      "updatedAt absent",
			block:     "createdAt: 2025-01-15T10:30:00Z\ntags: [a]\nsource: test\n",
			wantCode:  CodeMissingField,
			wantField: "updatedAt",
		},
		{
			name:      "tags absent",
			block:     "createdAt: 2025-01-15T10:30:00Z\nupdatedAt: 2025-02-01T09:00:00Z\nsource: test\n",
			wantCode:  CodeMissingField,
			wantField: "tags",
		},
		{
			name:      "source absent",
			block:     "createdAt: 2025-01-15T10:30:00Z\nupdatedAt: 2025-02-01T09:00:00Z\ntags: [a]\n",
			wantCode:  CodeMissingField,
			wantField: "source",
		},
		{
			name:      "createdAt malformed",
			block:     full(map[string]string{"createdAt": "yesterday"}),
			wantCode:  CodeInvalidTimestamp,
			wantField: "createdAt",
		},
		{
			name:      "expiresAt malformed",
			block:     full(map[string]string{"expiresAt": "never"}),
			wantCode:  CodeInvalidTimestamp,
			wantField: "expiresAt",
		},
		{
			name:      "tags not a list",
			block:     full(map[string]string{"tags": "solo"}),
			wantCode:  CodeInvalidTags,
			wantField: "tags",
		},
		{
			name:      "tags with empty element",
			block:     full(map[string]string{"tags": `[a, ""]`}),
			wantCode:  CodeInvalidTags,
			wantField: "tags",
		},
		{
			name:      "source blank",
			block:     full(map[string]string{"source": `"   "`}),
			wantCode:  CodeInvalidSource,
			wantField: "source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(frame(tt.block))
			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Equal(t, tt.wantField, se.Field)
		})
	}
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	raw := []byte("---\n" +
		"createdAt: 2025-01-15T10:30:00Z\n" +
		"updatedAt: 2025-02-01T09:00:00Z\n" +
		"tags: [a]\n" +
		"source: one\n" +
		"source: two\n" +
		"---\nbody")
	_, err := Parse(raw)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInvalidFrontmatter, se.Code)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("---\n\t: [unclosed\n---\nbody"))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeInvalidFrontmatter, se.Code)
}

func TestSerializeValidatesBeforeWriting(t *testing.T) {
	t.Run("zero createdAt", func(t *testing.T) {
		m := validMemory()
		m.Metadata.CreatedAt = time.Time{}
		_, err := Serialize(m)
		assert.Equal(t, CodeMissingField, CodeOf(err))
	})

	t.Run("empty tag", func(t *testing.T) {
		m := validMemory()
		m.Metadata.Tags = []string{"ok", ""}
		_, err := Serialize(m)
		assert.Equal(t, CodeInvalidTags, CodeOf(err))
	})

	t.Run("blank source", func(t *testing.T) {
		m := validMemory()
		m.Metadata.Source = "  "
		_, err := Serialize(m)
		assert.Equal(t, CodeInvalidSource, CodeOf(err))
	})
}

func TestSerializeQuotesAwkwardSource(t *testing.T) {
	m := validMemory()
	m.Metadata.Source = "import: session #42"

	raw, err := Serialize(m)
	require.NoError(t, err)

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, m.Metadata.Source, parsed.Metadata.Source)
}
