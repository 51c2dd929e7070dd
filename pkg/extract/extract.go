package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/pkg/logger"
)

type Config struct {
	// PDFTextBinary extracts the embedded text layer (pdftotext-compatible).
	PDFTextBinary string
	// OCRBinary is invoked when the embedded layer is too short.
	OCRBinary string
	// OCRTimeout bounds the OCR subprocess; a timeout is an extraction error.
	OCRTimeout time.Duration
}

// Engine extracts document text, preferring the embedded text layer and
// falling back to OCR for scanned documents.
type Engine struct {
	config Config
	logger *log.Logger
}

func NewWithConfig(config Config) *Engine {
	if config.PDFTextBinary == "" {
		config.PDFTextBinary = "pdftotext"
	}
	if config.OCRBinary == "" {
		config.OCRBinary = "tesseract"
	}
	if config.OCRTimeout == 0 {
		config.OCRTimeout = 5 * time.Minute
	}
	return &Engine{config: config, logger: logger.New("Extract")}
}

// Extract returns the text of the file at path. For PDFs, the embedded text
// layer is used when its trimmed length reaches minChars; otherwise the
// whole document goes through OCR. Failures are extraction errors fatal to
// this document only.
func (e *Engine) Extract(ctx context.Context, path string, minChars int) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", errs.ErrExtraction, path, err)
		}
		return strings.TrimSpace(string(data)), nil
	case ".html", ".htm":
		return e.htmlText(path)
	default:
		return e.pdfText(ctx, path, minChars)
	}
}

func (e *Engine) htmlText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", errs.ErrExtraction, path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", errs.ErrExtraction, path, err)
	}
	doc.Find("script, style").Remove()
	return normalize(doc.Find("body").Text()), nil
}

func (e *Engine) pdfText(ctx context.Context, path string, minChars int) (string, error) {
	text, err := e.embeddedText(ctx, path)
	if err != nil {
		e.logger.Printf("embedded text layer unavailable for %s: %v", path, err)
		text = ""
	}
	if len(strings.TrimSpace(text)) >= minChars {
		return strings.TrimSpace(text), nil
	}

	ocr, err := e.ocrText(ctx, path)
	if err != nil {
		return "", err
	}
	return ocr, nil
}

func (e *Engine) embeddedText(ctx context.Context, path string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, e.config.PDFTextBinary, path, "-")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	// pdftotext separates pages with form feeds; pages are concatenated with
	// blank lines instead.
	return strings.ReplaceAll(out.String(), "\f", "\n\n"), nil
}

func (e *Engine) ocrText(ctx context.Context, path string) (string, error) {
	octx, cancel := context.WithTimeout(ctx, e.config.OCRTimeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(octx, e.config.OCRBinary, path, "stdout", "--psm", "1")
	cmd.Stdout = &out
	err := cmd.Run()
	if errors.Is(octx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: OCR timed out after %s for %s", errs.ErrExtraction, e.config.OCRTimeout, path)
	}
	if err != nil {
		return "", fmt.Errorf("%w: OCR failed for %s: %v", errs.ErrExtraction, path, err)
	}
	return strings.TrimSpace(out.String()), nil
}

// normalize collapses runs of whitespace inside lines while keeping line
// structure, so HTML scrapes stay readable for the classifier.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
