package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files. Each paragraph is one block.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	items := make([]flowItem, 0, len(paragraphs))
	for _, para := range paragraphs {
		items = append(items, flowItem{text: para})
	}
	d := flowDocument(filename, items)
	d.Labels = nil // plain text carries no heading markup
	return d, nil
}
