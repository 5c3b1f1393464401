package parser

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/dgallion1/docoutline/internal/doctree"
)

func buildEPUB(t *testing.T, chapters map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, content string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(content))
	}

	write("mimetype", "application/epub+zip")
	write("META-INF/container.xml", `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine string
	for _, id := range order {
		manifest += `<item id="` + id + `" href="` + id + `.xhtml" media-type="application/xhtml+xml"/>`
		spine += `<itemref idref="` + id + `"/>`
	}
	write("OEBPS/content.opf", `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Test</dc:title></metadata>
  <manifest>`+manifest+`</manifest>
  <spine>`+spine+`</spine>
</package>`)
	for _, id := range order {
		write("OEBPS/"+id+".xhtml", chapters[id])
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEPUBParser_ChaptersOnNewPages(t *testing.T) {
	data := buildEPUB(t, map[string]string{
		"c1": `<html><body><h1>The Book</h1><p>Preface text.</p></body></html>`,
		"c2": `<html><body><h1>Chapter One</h1><p>It begins.</p><h2>A Scene</h2></body></html>`,
	}, []string{"c1", "c2"})

	doc, err := (&EPUBParser{}).Parse(bytes.NewReader(data), "book.epub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "book" {
		t.Errorf("name = %q", doc.Name)
	}

	wantText := []string{"The Book", "Preface text.", "Chapter One", "It begins.", "A Scene"}
	wantLabel := []doctree.Label{doctree.LabelTitle, doctree.LabelNone, doctree.LabelH1, doctree.LabelNone, doctree.LabelH2}
	got := texts(doc)
	if len(got) != len(wantText) {
		t.Fatalf("expected %d blocks, got %q", len(wantText), got)
	}
	for i := range wantText {
		if got[i] != wantText[i] || doc.Labels[i] != wantLabel[i] {
			t.Errorf("block %d: got %q/%s, want %q/%s", i, got[i], doc.Labels[i], wantText[i], wantLabel[i])
		}
	}
	if doc.Blocks[1].Page != 1 || doc.Blocks[2].Page != 2 {
		t.Errorf("expected second chapter on page 2, got pages %d and %d", doc.Blocks[1].Page, doc.Blocks[2].Page)
	}
}

func TestEPUBParser_NotAnArchive(t *testing.T) {
	if _, err := (&EPUBParser{}).Parse(bytes.NewReader([]byte("plain text")), "bad.epub"); err == nil {
		t.Error("expected error for non-zip input")
	}
}

func TestLayoutFlow_PageBreakItem(t *testing.T) {
	blocks, _ := layoutFlow([]flowItem{
		{text: "first", pageBreak: true},
		{text: "second"},
		{text: "third", pageBreak: true},
	})
	if blocks[0].Page != 1 || blocks[1].Page != 1 || blocks[2].Page != 2 {
		t.Errorf("unexpected pages: %d %d %d", blocks[0].Page, blocks[1].Page, blocks[2].Page)
	}
	if blocks[2].BBox.Y0 != pageMargin {
		t.Errorf("expected new page to start at the margin, got %v", blocks[2].BBox.Y0)
	}
}
