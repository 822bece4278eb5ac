package testutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalPDF(t *testing.T) {
	pdf := MinimalPDF("Invoice Total: $42", "Paid (in full)")

	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))
	assert.Equal(t, "Invoice Total: $42\nPaid (in full)", TextOf(pdf))
}
