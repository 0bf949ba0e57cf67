package services

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"

	"alfredoptarigan/rubric-evaluator/internal/config"
	"alfredoptarigan/rubric-evaluator/internal/errs"
)

// MaxDocumentSize is the largest document accepted anywhere in the pipeline (10 MiB).
const MaxDocumentSize = config.MaxDocumentSize

const pdfMagic = "%PDF-"

type PDFParserService interface {
	Extract(data []byte) (*PDFContent, error)
}

type PDFContent struct {
	Text      string
	PageCount int
	Info      map[string]string
	// Metadata is the raw XMP packet of the document catalog, when present.
	Metadata string
}

type pdfParserService struct {
	maxSize int64
}

func NewPDFParserService(maxSize int64) PDFParserService {
	return &pdfParserService{maxSize: documentLimit(maxSize)}
}

// documentLimit bounds a configured size limit by MaxDocumentSize.
func documentLimit(maxSize int64) int64 {
	if maxSize <= 0 || maxSize > MaxDocumentSize {
		return MaxDocumentSize
	}
	return maxSize
}

// ValidatePDF enforces the size ceiling and the %PDF- signature.
func ValidatePDF(data []byte, maxSize int64) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("document is %d bytes, limit is %d: %w", len(data), maxSize, errs.ErrPayloadTooLarge)
	}
	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return fmt.Errorf("missing %s signature: %w", pdfMagic, errs.ErrInvalidFormat)
	}
	return nil
}

func (p *pdfParserService) Extract(data []byte) (content *PDFContent, err error) {
	if err := ValidatePDF(data, p.maxSize); err != nil {
		return nil, err
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = fmt.Errorf("pdf parser panic: %v: %w", r, errs.ErrCorruptDocument)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %v: %w", err, errs.ErrCorruptDocument)
	}

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("⚠️  Skipping page %d: %v", pageIndex, err)
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	return &PDFContent{
		Text:      textBuilder.String(),
		PageCount: totalPage,
		Info:      readInfo(r),
		Metadata:  readXMP(r),
	}, nil
}

func readInfo(r *pdf.Reader) map[string]string {
	info := make(map[string]string)
	dict := r.Trailer().Key("Info")
	if dict.Kind() != pdf.Dict {
		return info
	}
	for _, key := range dict.Keys() {
		v := dict.Key(key)
		switch v.Kind() {
		case pdf.String:
			info[key] = v.Text()
		case pdf.Name:
			info[key] = v.Name()
		}
	}
	return info
}

func readXMP(r *pdf.Reader) string {
	stream := r.Trailer().Key("Root").Key("Metadata")
	if stream.Kind() != pdf.Stream {
		return ""
	}
	rc := stream.Reader()
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		log.Printf("⚠️  Failed to read XMP metadata: %v", err)
		return ""
	}
	return string(raw)
}
