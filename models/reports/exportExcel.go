package reports

import (
	"fmt"
	"io"

	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/xuri/excelize/v2"
)

const trialBalanceSheet = "Trial Balance"

// ExportTrialBalanceExcel writes tb as an xlsx workbook.
func ExportTrialBalanceExcel(tb *TrialBalance, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", trialBalanceSheet); err != nil {
		return err
	}

	asOf := "All dates"
	if tb.AsOf != nil {
		asOf = tb.AsOf.Format(utils.DateLayout)
	}
	f.SetCellValue(trialBalanceSheet, "A1", "Trial Balance as of")
	f.SetCellValue(trialBalanceSheet, "B1", asOf)

	// Add headers
	f.SetCellValue(trialBalanceSheet, "A3", "Ledger")
	f.SetCellValue(trialBalanceSheet, "B3", "Group")
	f.SetCellValue(trialBalanceSheet, "C3", "Debit")
	f.SetCellValue(trialBalanceSheet, "D3", "Credit")

	// Add data
	row := 4
	for _, r := range tb.Rows {
		f.SetCellValue(trialBalanceSheet, "A"+fmt.Sprint(row), r.LedgerName)
		f.SetCellValue(trialBalanceSheet, "B"+fmt.Sprint(row), r.GroupName)
		f.SetCellValue(trialBalanceSheet, "C"+fmt.Sprint(row), r.Debit.InexactFloat64())
		f.SetCellValue(trialBalanceSheet, "D"+fmt.Sprint(row), r.Credit.InexactFloat64())
		row++
	}
	f.SetCellValue(trialBalanceSheet, "A"+fmt.Sprint(row), "Total")
	f.SetCellValue(trialBalanceSheet, "C"+fmt.Sprint(row), tb.TotalDebit.InexactFloat64())
	f.SetCellValue(trialBalanceSheet, "D"+fmt.Sprint(row), tb.TotalCredit.InexactFloat64())

	if err := f.SetColWidth(trialBalanceSheet, "A", "B", 30); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}
