package docgen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Minimal WordprocessingML package: content types, package rels and a
// document part with one paragraph per input line.
const (
	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	documentHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

	documentFooter = `<w:sectPr/></w:body></w:document>`
)

// marshalDocx renders plain text into DOCX bytes. Blank lines become empty
// paragraphs; all-caps heading lines are emphasized.
func marshalDocx(text string) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(documentHeader)

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		doc.WriteString(paragraphXML(line))
	}
	doc.WriteString(documentFooter)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", doc.String()},
	}

	for _, part := range parts {
		f, err := w.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", part.name, err)
		}
		if _, err := f.Write([]byte(part.data)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}

	return buf.Bytes(), nil
}

func paragraphXML(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "<w:p/>"
	}

	run := fmt.Sprintf("<w:r><w:t xml:space=\"preserve\">%s</w:t></w:r>", escapeXML(trimmed))
	if isHeadingLine(trimmed) {
		run = fmt.Sprintf("<w:r><w:rPr><w:b/></w:rPr><w:t xml:space=\"preserve\">%s</w:t></w:r>", escapeXML(trimmed))
	}

	return "<w:p>" + run + "</w:p>"
}

func isHeadingLine(line string) bool {
	if len(line) > 40 {
		return false
	}
	return line == strings.ToUpper(line) && line != strings.ToLower(line)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
