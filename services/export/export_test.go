package exportsvc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/report"
)

var sampleReport = report.Report{
	Kind:       report.KindOutstanding,
	Title:      "Outstanding Fees Report",
	Subtitle:   "As of 2025-06-30 • All Classes",
	SchoolName: "Ajanta Public School",
	Summary:    report.Summary{Label: "Total Outstanding", Value: "₹26,000"},
	Headers:    []string{"Adm No", "Name", "Class", "Father Name", "Amount Due"},
	Rows: [][]string{
		{"ADM001", "Aarav Sharma", "5", "Rajesh Sharma, Sr.", "₹16,000"},
		{"ADM002", "Diya Patel", "LKG", "Amit Patel", "₹10,000"},
	},
	GeneratedAt: time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC),
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport))

	want := "Adm No,Name,Class,Father Name,Amount Due\n" +
		"ADM001,Aarav Sharma,5,\"Rajesh Sharma, Sr.\",\"₹16,000\"\n" +
		"ADM002,Diya Patel,LKG,Amit Patel,\"₹10,000\"\n" +
		"Total Outstanding,,,,\"₹26,000\"\n"
	assert.Equal(t, want, buf.String())
}

func TestPDFRenderer(t *testing.T) {
	r := NewPDFRenderer(core.NewTestConfig())

	t.Run("report", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, r.RenderReport(&buf, sampleReport))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})

	t.Run("receipt", func(t *testing.T) {
		var buf bytes.Buffer
		err := r.RenderReceipt(&buf, payment.Receipt{
			SchoolName:    "Ajanta Public School",
			Currency:      "₹",
			ReceiptNumber: "REC-1001",
			Date:          "2025-06-30",
			StudentName:   "Aarav Sharma",
			ClassName:     "5",
			Method:        payment.MethodCash,
			Lines:         []payment.ReceiptLine{{Description: "Arrears (2024-25)", Year: "2024-25", Amount: core.FromMajor(2000)}},
			Amount:        core.FromMajor(1500),
			Discount:      core.FromMajor(500),
			Total:         core.FromMajor(2000),
			Note:          "paid by father",
			CollectedBy:   "Meena",
		})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(100, []string{"Date", "Name"}, [][]string{{"2025-06-30", "Aarav"}})
	require.Len(t, widths, 2)
	assert.InDelta(t, 100, widths[0]+widths[1], 0.001)
	assert.Greater(t, widths[0], widths[1])
}
