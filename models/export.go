package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const followUpSheetName = "Sheet1"

func writeQueueRows(f *excelize.File, rowNo int, bucket string, accounts []*Account, ownerNames map[int]string) int {
	for _, account := range accounts {
		f.SetCellValue(followUpSheetName, "A"+fmt.Sprint(rowNo), bucket)
		f.SetCellValue(followUpSheetName, "B"+fmt.Sprint(rowNo), account.Name)
		f.SetCellValue(followUpSheetName, "C"+fmt.Sprint(rowNo), string(account.Priority))
		f.SetCellValue(followUpSheetName, "D"+fmt.Sprint(rowNo), string(account.CrmStatus))
		if account.NextFollowUpDate != nil {
			f.SetCellValue(followUpSheetName, "E"+fmt.Sprint(rowNo), account.NextFollowUpDate.Format("2006-01-02"))
		}
		f.SetCellValue(followUpSheetName, "F"+fmt.Sprint(rowNo), ownerNames[account.AccountOwnerId])
		f.SetCellValue(followUpSheetName, "G"+fmt.Sprint(rowNo), account.Phone)
		rowNo++
	}
	return rowNo
}

// ExportFollowUpQueueXLSX renders the classified dashboard as a spreadsheet
// for offline call lists.
func ExportFollowUpQueueXLSX(ctx context.Context, windowDays *int, ownerId *int) (*excelize.File, error) {

	queues, err := GetFollowUpDashboard(ctx, windowDays, ownerId)
	if err != nil {
		return nil, err
	}

	owners, err := GetOwners(ctx, nil)
	if err != nil {
		return nil, err
	}
	ownerNames := make(map[int]string, len(owners))
	for _, owner := range owners {
		ownerNames[owner.ID] = owner.Name
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet(followUpSheetName); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(followUpSheetName, "A1", "Queue")
	f.SetCellValue(followUpSheetName, "B1", "Account")
	f.SetCellValue(followUpSheetName, "C1", "Priority")
	f.SetCellValue(followUpSheetName, "D1", "Status")
	f.SetCellValue(followUpSheetName, "E1", "NextFollowUpDate")
	f.SetCellValue(followUpSheetName, "F1", "Owner")
	f.SetCellValue(followUpSheetName, "G1", "Phone")

	rowNo := 2
	rowNo = writeQueueRows(f, rowNo, "Overdue", queues.Overdue, ownerNames)
	rowNo = writeQueueRows(f, rowNo, "DueToday", queues.DueToday, ownerNames)
	writeQueueRows(f, rowNo, "Upcoming", queues.Upcoming, ownerNames)

	return f, nil
}

// ImportDeviceBatchFromXlsx registers a batch whose unit identifiers come
// from column A of an uploaded sheet (first row is the header). Batch
// metadata travels alongside the file; the sheet only carries identifiers.
func ImportDeviceBatchFromXlsx(ctx context.Context, filename string, file io.Reader, input *NewDeviceBatch) (*DeviceBatch, error) {
	if file == nil {
		return nil, errors.New("nil file provided")
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		return nil, fmt.Errorf("invalid file type: only .xlsx files are allowed")
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(followUpSheetName)
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("sheet has no identifier rows")
	}

	imeis := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		imeis = append(imeis, row[0])
	}

	batchInput := NewDeviceBatch{
		BatchNumber:      input.BatchNumber,
		DeclaredQuantity: input.DeclaredQuantity,
		IsUnitTracked:    input.IsUnitTracked,
		SupplierName:     input.SupplierName,
		ReceivedDate:     input.ReceivedDate,
		Notes:            input.Notes,
		Imeis:            imeis,
	}
	if batchInput.ReceivedDate.IsZero() {
		batchInput.ReceivedDate = time.Now()
	}
	return RegisterDeviceBatch(ctx, &batchInput)
}
