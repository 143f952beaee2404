// Package xlsx exports a student's payment history as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/admission-portal/internal/core/domain"
)

const (
	PaymentsSheet = "Payments"
	SummarySheet  = "Summary"
)

var paymentColumns = []string{
	"Transaction ID", "Date", "Amount (INR)", "Method", "Gateway", "Status", "Description", "Remarks",
}

type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

// ExportPayments writes one row per transaction, newest first as held by the account,
// plus a summary sheet of the fee position.
func (e *Exporter) ExportPayments(w io.Writer, account domain.StudentAccount) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PaymentsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}

	if err := writePayments(f, account.Transactions, headerStyle, amountStyle); err != nil {
		return err
	}
	if err := writeSummary(f, account, headerStyle, amountStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writePayments(f *excelize.File, txns []domain.PaymentTransaction, headerStyle, amountStyle int) error {
	header := make([]any, len(paymentColumns))
	for i, col := range paymentColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(PaymentsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(PaymentsSheet, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, txn := range txns {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			txn.TransactionID, txn.CreatedAt, txn.Amount, txn.PaymentMethod,
			txn.PaymentGateway, txn.Status, txn.Description, txn.Remarks,
		}
		if err := f.SetSheetRow(PaymentsSheet, cell, &row); err != nil {
			return fmt.Errorf("write transaction %d: %w", i, err)
		}
	}
	if len(txns) > 0 {
		last := fmt.Sprintf("C%d", len(txns)+1)
		if err := f.SetCellStyle(PaymentsSheet, "C2", last, amountStyle); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	if err := f.SetColWidth(PaymentsSheet, "A", "A", 26); err != nil {
		return err
	}
	if err := f.SetColWidth(PaymentsSheet, "B", "H", 18); err != nil {
		return err
	}
	return f.SetPanes(PaymentsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, account domain.StudentAccount, headerStyle, amountStyle int) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	rows := [][]any{
		{"Student ID", account.StudentID},
		{"Student Name", account.FullName},
		{"Program", account.SelectedProgram},
		{"Campus", account.Campus},
		{"Academic Year", account.AcademicYear},
		{"Total Fee", account.TotalFee},
		{"Amount Paid", account.PaidAmount},
		{"Remaining Amount", account.RemainingAmount},
		{"Total Discount", account.TotalDiscount},
		{"Payment Status", account.PaymentStatus},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i, err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "B6", "B9", amountStyle); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 24)
}
