package parser

import (
	"fmt"
	"io"
	"os"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
)

// EPUBParser handles .epub files. Spine documents are read in order as HTML;
// each one starts on a new synthetic page.
type EPUBParser struct{}

func (p *EPUBParser) Parse(r io.Reader, filename string) (*Document, error) {
	// goreader opens archives by path.
	tmp, err := os.CreateTemp("", "outline-epub-*.epub")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	rc, err := epub.OpenReader(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	book := rc.Rootfiles[0]

	var items []flowItem
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		chapter, err := ref.Item.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", ref.Item.HREF, err)
		}
		doc, err := html.Parse(chapter)
		chapter.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", ref.Item.HREF, err)
		}

		chapterItems := htmlItems(doc)
		if len(chapterItems) > 0 {
			chapterItems[0].pageBreak = true
		}
		items = append(items, chapterItems...)
	}

	return flowDocument(filename, items), nil
}
