package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/rubric-evaluator/internal/errs"
)

func TestValidatePDF(t *testing.T) {
	t.Parallel()

	exact := make([]byte, MaxDocumentSize)
	copy(exact, pdfMagic)
	over := make([]byte, MaxDocumentSize+1)
	copy(over, pdfMagic)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "exactly the limit", data: exact},
		{name: "one byte over", data: over, wantErr: errs.ErrPayloadTooLarge},
		{name: "wrong magic", data: []byte("PK\x03\x04 not a pdf"), wantErr: errs.ErrInvalidFormat},
		{name: "magic without dash", data: []byte("%PDF1.7"), wantErr: errs.ErrInvalidFormat},
		{name: "empty", data: nil, wantErr: errs.ErrInvalidFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePDF(tt.data, MaxDocumentSize)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPDFParser_ExtractRejectsBeforeParsing(t *testing.T) {
	t.Parallel()
	parser := NewPDFParserService(0)

	_, err := parser.Extract([]byte("<html>not a pdf</html>"))
	assert.ErrorIs(t, err, errs.ErrInvalidFormat)

	big := append([]byte(pdfMagic), bytes.Repeat([]byte{'0'}, int(MaxDocumentSize))...)
	_, err = parser.Extract(big)
	assert.ErrorIs(t, err, errs.ErrPayloadTooLarge)
}

func TestPDFParser_ExtractCorrupt(t *testing.T) {
	t.Parallel()
	parser := NewPDFParserService(MaxDocumentSize)

	content, err := parser.Extract([]byte("%PDF-1.4\nthis is not really a pdf body"))
	require.Error(t, err)
	assert.Nil(t, content)
	assert.ErrorIs(t, err, errs.ErrCorruptDocument)
}
