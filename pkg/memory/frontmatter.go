package memory

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Delimiter is the marker line opening and closing the front-matter block.
const Delimiter = "---"

const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
	fieldTags      = "tags"
	fieldSource    = "source"
	fieldExpiresAt = "expiresAt"
)

// Parse deserializes a raw memory file into a Memory. The file must open
// with a delimiter line, carry a YAML mapping until the next delimiter line,
// and everything after that line is the body, verbatim.
func Parse(raw []byte) (*Memory, error) {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")

	firstEnd := strings.IndexByte(s, '\n')
	firstLine := s
	if firstEnd >= 0 {
		firstLine = s[:firstEnd]
	}
	if firstLine != Delimiter || firstEnd < 0 {
		return nil, &Error{
			Code: CodeMissingFrontmatter,
			Line: 1,
			Err:  fmt.Errorf("file must open with a %q line", Delimiter),
		}
	}

	blockStart := firstEnd + 1
	pos := blockStart
	line := 2
	for pos <= len(s) {
		end := strings.IndexByte(s[pos:], '\n')
		var current string
		if end < 0 {
			current = s[pos:]
		} else {
			current = s[pos : pos+end]
		}
		if current == Delimiter {
			body := ""
			if end >= 0 {
				body = s[pos+end+1:]
			}
			meta, err := parseMetadata(s[blockStart:pos])
			if err != nil {
				return nil, err
			}
			return &Memory{Metadata: *meta, Content: body}, nil
		}
		if end < 0 {
			break
		}
		pos += end + 1
		line++
	}
	return nil, &Error{
		Code: CodeMissingFrontmatter,
		Line: line,
		Err:  fmt.Errorf("closing %q line not found", Delimiter),
	}
}

// parseMetadata decodes the front-matter block and validates each field
// explicitly, so errors identify which field failed and whether it was
// absent or malformed.
func parseMetadata(block string) (*Metadata, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		// Covers malformed YAML and duplicate keys alike.
		return nil, &Error{Code: CodeInvalidFrontmatter, Err: err}
	}

	meta := &Metadata{}

	createdAt, ok, err := timestampField(doc, fieldCreatedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fieldMissing(fieldCreatedAt)
	}
	meta.CreatedAt = createdAt

	updatedAt, ok, err := timestampField(doc, fieldUpdatedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fieldMissing(fieldUpdatedAt)
	}
	meta.UpdatedAt = updatedAt

	tagsNode, ok := doc[fieldTags]
	if !ok {
		return nil, fieldMissing(fieldTags)
	}
	tags, err := decodeTags(&tagsNode)
	if err != nil {
		return nil, err
	}
	meta.Tags = tags

	sourceNode, ok := doc[fieldSource]
	if !ok {
		return nil, fieldMissing(fieldSource)
	}
	source, err := scalarValue(&sourceNode)
	if err != nil || strings.TrimSpace(source) == "" {
		return nil, fieldInvalid(CodeInvalidSource, fieldSource, fmt.Errorf("source must be a non-empty string"))
	}
	meta.Source = source

	if expiresNode, ok := doc[fieldExpiresAt]; ok {
		expires, err := decodeTimestamp(&expiresNode, fieldExpiresAt)
		if err != nil {
			return nil, err
		}
		meta.ExpiresAt = &expires
	}

	return meta, nil
}

func timestampField(doc map[string]yaml.Node, field string) (time.Time, bool, error) {
	node, ok := doc[field]
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := decodeTimestamp(&node, field)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

func decodeTimestamp(node *yaml.Node, field string) (time.Time, error) {
	v, err := scalarValue(node)
	if err != nil {
		return time.Time{}, fieldInvalid(CodeInvalidTimestamp, field, err)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fieldInvalid(CodeInvalidTimestamp, field, err)
	}
	return t, nil
}

func decodeTags(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fieldInvalid(CodeInvalidTags, fieldTags, fmt.Errorf("tags must be a list"))
	}
	tags := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		v, err := scalarValue(item)
		if err != nil || v == "" {
			return nil, fieldInvalid(CodeInvalidTags, fieldTags, fmt.Errorf("tags must be non-empty strings"))
		}
		tags = append(tags, v)
	}
	return tags, nil
}

func scalarValue(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return "", fmt.Errorf("expected a scalar value")
	}
	return node.Value, nil
}

// Serialize renders a memory to its on-disk byte form. All metadata
// constraints are checked before anything is emitted; an invalid field
// yields the same field-specific code Parse would report.
func Serialize(m *Memory) ([]byte, error) {
	if m.Metadata.CreatedAt.IsZero() {
		return nil, fieldMissing(fieldCreatedAt)
	}
	if m.Metadata.UpdatedAt.IsZero() {
		return nil, fieldMissing(fieldUpdatedAt)
	}
	for _, tag := range m.Metadata.Tags {
		if tag == "" {
			return nil, fieldInvalid(CodeInvalidTags, fieldTags, fmt.Errorf("tags must be non-empty strings"))
		}
	}
	if strings.TrimSpace(m.Metadata.Source) == "" {
		return nil, fieldInvalid(CodeInvalidSource, fieldSource, fmt.Errorf("source must be a non-empty string"))
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	addField := func(key string, value *yaml.Node) {
		doc.Content = append(doc.Content, stringNode(key), value)
	}
	addField(fieldCreatedAt, timestampNode(m.Metadata.CreatedAt))
	addField(fieldUpdatedAt, timestampNode(m.Metadata.UpdatedAt))

	tags := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, tag := range m.Metadata.Tags {
		tags.Content = append(tags.Content, stringNode(tag))
	}
	addField(fieldTags, tags)
	addField(fieldSource, stringNode(m.Metadata.Source))
	if m.Metadata.ExpiresAt != nil {
		addField(fieldExpiresAt, timestampNode(*m.Metadata.ExpiresAt))
	}

	block, err := yaml.Marshal(doc)
	if err != nil {
		return nil, &Error{Code: CodeInvalidFrontmatter, Err: err}
	}

	var buf bytes.Buffer
	buf.WriteString(Delimiter + "\n")
	buf.Write(block)
	buf.WriteString(Delimiter)
	// A single separating newline, unless the body already starts with one.
	if !strings.HasPrefix(m.Content, "\n") {
		buf.WriteByte('\n')
	}
	buf.WriteString(m.Content)
	return buf.Bytes(), nil
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// timestampNode emits instants as plain RFC 3339 scalars rather than quoted
// strings, keeping the file format stable across round trips.
func timestampNode(t time.Time) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!timestamp", Value: formatTimestamp(t)}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
