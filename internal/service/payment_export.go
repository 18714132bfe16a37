package service

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"libraryhub.com/internal/model"
)

const paymentsSheet = "Payments"

var paymentsHeader = []string{"Invoice", "Date", "Email", "Name", "Type", "Status", "Amount"}

func renderPaymentsWorkbook(payments []model.Transaction) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(paymentsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(paymentsSheet, "A1", &paymentsHeader); err != nil {
		return nil, err
	}

	for i := range payments {
		p := &payments[i]
		var email, name string
		if p.User != nil {
			email = p.User.Email
			name = p.User.FirstName + " " + p.User.LastName
		}

		row := []interface{}{
			invoiceNumber(p),
			p.CreatedAt.UTC().Format("2006-01-02 15:04"),
			email,
			name,
			string(p.Type),
			string(p.Status),
			p.Amount,
		}
		if err := f.SetSheetRow(paymentsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	f.SetColWidth(paymentsSheet, "A", "A", 22)
	f.SetColWidth(paymentsSheet, "B", "B", 18)
	f.SetColWidth(paymentsSheet, "C", "C", 30)
	f.SetColWidth(paymentsSheet, "D", "D", 24)
	f.SetColWidth(paymentsSheet, "E", "F", 14)
	f.SetColWidth(paymentsSheet, "G", "G", 12)

	return f.WriteToBuffer()
}
