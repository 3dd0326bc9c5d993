// Package docgen renders tailored content into application documents. Each
// artifact is produced as a native DOCX plus a derived PDF; PDF conversion
// is best-effort and never fails the job on its own.
package docgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/tailoring"
)

// ErrRender marks a failure to produce a primary document. Unlike PDF
// conversion problems, this fails the job.
var ErrRender = errors.New("document rendering failed")

const (
	ResumeFileName      = "resume.docx"
	CoverLetterFileName = "cover_letter.docx"
	ResumePDFName       = "resume.pdf"
	CoverLetterPDFName  = "cover_letter.pdf"
)

// Artifacts holds the rendered documents keyed by file name. PDFFailed is
// set when conversion did not produce usable PDFs; the outcome notes it.
type Artifacts struct {
	Files     map[string][]byte
	PDFFailed bool
}

// Generator renders documents. The PDF converter is swappable so tests do
// not need LibreOffice.
type Generator struct {
	converter PDFConverter
	logger    *zap.Logger
}

// PDFConverter turns DOCX bytes into PDF bytes.
type PDFConverter interface {
	Convert(ctx context.Context, docx []byte) ([]byte, error)
}

func New(converter PDFConverter, logger *zap.Logger) *Generator {
	return &Generator{converter: converter, logger: logger}
}

// Generate renders the resume and cover letter. A DOCX failure returns
// ErrRender; a PDF failure only flags the artifacts.
func (g *Generator) Generate(ctx context.Context, content *tailoring.Content) (*Artifacts, error) {
	resumeDoc, err := marshalDocx(content.ResumeText)
	if err != nil {
		return nil, fmt.Errorf("%w: resume: %w", ErrRender, err)
	}

	coverDoc, err := marshalDocx(content.CoverLetter)
	if err != nil {
		return nil, fmt.Errorf("%w: cover letter: %w", ErrRender, err)
	}

	artifacts := &Artifacts{Files: map[string][]byte{
		ResumeFileName:      resumeDoc,
		CoverLetterFileName: coverDoc,
	}}

	for src, dst := range map[string]string{
		ResumeFileName:      ResumePDFName,
		CoverLetterFileName: CoverLetterPDFName,
	} {
		pdf, err := g.converter.Convert(ctx, artifacts.Files[src])
		if err != nil {
			g.logger.Warn("pdf conversion failed, keeping native document",
				zap.String("job_id", content.JobID),
				zap.String("file", src),
				zap.Error(err),
			)
			artifacts.PDFFailed = true
			continue
		}
		artifacts.Files[dst] = pdf
	}

	return artifacts, nil
}

// SofficeConverter shells out to LibreOffice in headless mode. Conversion
// runs in a scratch directory so concurrent jobs do not collide.
type SofficeConverter struct {
	Binary string
}

func NewSofficeConverter() *SofficeConverter {
	return &SofficeConverter{Binary: "soffice"}
}

func (c *SofficeConverter) Convert(ctx context.Context, docx []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "applypilot-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("pdf scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "document.docx")
	if err := os.WriteFile(src, docx, 0o644); err != nil {
		return nil, fmt.Errorf("write pdf input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Binary, "--headless", "--convert-to", "pdf", "--outdir", dir, src)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("soffice convert: %w: %s", err, out)
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "document.pdf"))
	if err != nil {
		return nil, fmt.Errorf("read converted pdf: %w", err)
	}

	return pdf, nil
}
