package cliui

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Format selects how results are written.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ErrReported marks an error already written for the user. Commands return
// it so main exits 1 without printing anything else.
var ErrReported = errors.New("error already reported")

// Formats returns every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatText, FormatMarkdown}
}

// ParseFormat converts a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatText, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format %q (available: json, text, markdown)", s)
	}
}

// Render writes v to w in format f.
func Render(w io.Writer, f Format, v any) error {
	switch f {
	case FormatText:
		return WriteText(w, v)
	case FormatMarkdown:
		return WriteMarkdown(w, v)
	default:
		return WriteJSON(w, v)
	}
}

// WriteJSON writes v as JSON indented by two spaces.
func WriteJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteError writes {"error": msg} as JSON.
func WriteError(w io.Writer, msg string) error {
	return WriteJSON(w, map[string]string{"error": msg})
}

// WriteText writes v as "key:  value" lines with labels padded to the
// longest key plus two. A value with a "results" list is written as one
// block per result separated by blank lines, then a "Found N memories"
// summary.
func WriteText(w io.Writer, v any) error {
	fields, err := objectFields(v)
	if err != nil {
		return err
	}

	keyStyle := lipgloss.NewRenderer(w).NewStyle().Bold(true)

	results, count, ok := resultList(fields)
	if !ok {
		_, err := io.WriteString(w, textBlock(fields, keyStyle))
		return err
	}

	var sb strings.Builder
	for i, raw := range results {
		item, err := orderedFields(raw)
		if err != nil {
			return err
		}
		sb.WriteString(textBlock(item, keyStyle))
		if i < len(results)-1 {
			sb.WriteString("\n")
		}
	}
	fmt.Fprintf(&sb, "\nFound %d memories\n", count)

	_, err = io.WriteString(w, sb.String())
	return err
}

// WriteMarkdown renders v as a markdown table per object through glamour.
func WriteMarkdown(w io.Writer, v any) error {
	fields, err := objectFields(v)
	if err != nil {
		return err
	}

	var md strings.Builder
	if results, count, ok := resultList(fields); ok {
		for i, raw := range results {
			item, err := orderedFields(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(&md, "## Result %d\n\n", i+1)
			markdownTable(&md, item)
		}
		fmt.Fprintf(&md, "Found %d memories\n", count)
	} else {
		markdownTable(&md, fields)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}

	rendered, err := r.Render(md.String())
	if err != nil {
		return fmt.Errorf("rendering markdown: %w", err)
	}

	_, err = io.WriteString(w, rendered)
	return err
}

type field struct {
	key   string
	value json.RawMessage
}

func objectFields(v any) ([]field, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return orderedFields(b)
}

// orderedFields decodes a JSON object keeping its key order.
func orderedFields(data []byte) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding output: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("output is not an object: %s", data)
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding output: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding output: %w", err)
		}
		fields = append(fields, field{key: key, value: raw})
	}

	return fields, nil
}

// resultList extracts the "results" list and "count" of a search response.
func resultList(fields []field) ([]json.RawMessage, int, bool) {
	var (
		results []json.RawMessage
		found   bool
		count   = -1
	)

	for _, f := range fields {
		switch f.key {
		case "results":
			if err := json.Unmarshal(f.value, &results); err != nil {
				return nil, 0, false
			}
			found = true
		case "count":
			_ = json.Unmarshal(f.value, &count)
		}
	}

	if !found {
		return nil, 0, false
	}
	if count < 0 {
		count = len(results)
	}
	return results, count, true
}

func textBlock(fields []field, keyStyle lipgloss.Style) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.key))
	}

	var sb strings.Builder
	for _, f := range fields {
		label := f.key + ":"
		pad := strings.Repeat(" ", width+2-len(label))
		sb.WriteString(keyStyle.Render(label))
		sb.WriteString(pad)
		sb.WriteString(plainValue(f.value))
		sb.WriteString("\n")
	}
	return sb.String()
}

func markdownTable(md *strings.Builder, fields []field) {
	md.WriteString("| field | value |\n| --- | --- |\n")
	for _, f := range fields {
		v := strings.ReplaceAll(plainValue(f.value), "|", `\|`)
		v = strings.ReplaceAll(v, "\n", " ")
		fmt.Fprintf(md, "| %s | %s |\n", f.key, v)
	}
	md.WriteString("\n")
}

// plainValue renders strings without quotes and everything else as JSON.
func plainValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
