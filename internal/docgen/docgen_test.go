package docgen

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/tailoring"
)

type stubConverter struct {
	pdf   []byte
	err   error
	calls int
}

func (c *stubConverter) Convert(_ context.Context, _ []byte) ([]byte, error) {
	c.calls++
	return c.pdf, c.err
}

func sampleContent() *tailoring.Content {
	return &tailoring.Content{
		JobID:       "abc123",
		CoverLetter: "Dear Hiring Manager,\n\nI am excited to apply.",
		ResumeText:  "SUMMARY\nBackend engineer with Go experience.\n\nEXPERIENCE\n- Built services.",
	}
}

func TestGenerateProducesAllArtifacts(t *testing.T) {
	conv := &stubConverter{pdf: []byte("%PDF-1.4 fake")}
	gen := New(conv, zap.NewNop())

	artifacts, err := gen.Generate(context.Background(), sampleContent())
	require.NoError(t, err)
	assert.False(t, artifacts.PDFFailed)
	assert.Equal(t, 2, conv.calls)

	for _, name := range []string{ResumeFileName, CoverLetterFileName, ResumePDFName, CoverLetterPDFName} {
		assert.NotEmpty(t, artifacts.Files[name], "missing artifact %s", name)
	}
}

func TestGeneratePDFFailureIsNonFatal(t *testing.T) {
	conv := &stubConverter{err: errors.New("soffice not installed")}
	gen := New(conv, zap.NewNop())

	artifacts, err := gen.Generate(context.Background(), sampleContent())
	require.NoError(t, err)
	assert.True(t, artifacts.PDFFailed)
	assert.Contains(t, artifacts.Files, ResumeFileName)
	assert.Contains(t, artifacts.Files, CoverLetterFileName)
	assert.NotContains(t, artifacts.Files, ResumePDFName)
	assert.NotContains(t, artifacts.Files, CoverLetterPDFName)
}

func TestMarshalDocxIsValidPackage(t *testing.T) {
	data, err := marshalDocx("SUMMARY\nPlain line with <angles> & ampersand.")
	require.NoError(t, err)

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	parts := map[string]bool{}
	var document string
	for _, f := range reader.File {
		parts[f.Name] = true
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			document = string(body)
		}
	}

	assert.True(t, parts["[Content_Types].xml"])
	assert.True(t, parts["_rels/.rels"])
	assert.True(t, parts["word/document.xml"])

	assert.Contains(t, document, "SUMMARY")
	assert.Contains(t, document, "&lt;angles&gt; &amp; ampersand")
	// The all-caps heading renders bold.
	headingIdx := strings.Index(document, "SUMMARY")
	boldIdx := strings.LastIndex(document[:headingIdx], "<w:b/>")
	assert.Positive(t, boldIdx)
}

func TestMarshalDocxEmptyText(t *testing.T) {
	data, err := marshalDocx("")
	require.NoError(t, err)

	_, err = zip.NewReader(bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
}
