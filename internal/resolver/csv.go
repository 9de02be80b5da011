package resolver

import (
	"context"
	"encoding/csv"
	"os"

	"go.uber.org/zap"

	"github.com/collectvoice/collectvoice/internal/store"
)

// CSVResolver serves customer records from a local CSV file, the mock mode
// used when the Collekto backend is unreachable from a developer machine.
// Lookups match the Loan_ID and system_id columns; the remaining columns
// follow the CustomerRecord field names.
type CSVResolver struct {
	path string
	log  *zap.Logger
}

func NewCSVResolver(path string, log *zap.Logger) *CSVResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVResolver{path: path, log: log}
}

// Resolve returns the matching row as a CustomerRecord. A missing file,
// unreadable content or no matching row all degrade to an empty result
// without an error: mock lookups never block a call.
func (r *CSVResolver) Resolve(_ context.Context, loanID, systemID string) (Result, error) {
	f, err := os.Open(r.path)
	if err != nil {
		r.log.Warn("mock data file unavailable", zap.String("path", r.path), zap.Error(err))
		return Result{}, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil || len(rows) < 2 {
		r.log.Warn("mock data file unreadable", zap.String("path", r.path), zap.Error(err))
		return Result{}, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	for _, row := range rows[1:] {
		if field(row, "Loan_ID") != loanID || field(row, "system_id") != systemID {
			continue
		}
		return Result{Record: store.CustomerRecord{
			DebtorName:     field(row, "Debtor_Name"),
			Gender:         field(row, "Gender"),
			EMIAmount:      field(row, "EMI_Amount"),
			PaymentDueDate: field(row, "Payment_Due_Date"),
			Product:        field(row, "Product"),
			DPD:            field(row, "DPD"),
		}}, nil
	}

	r.log.Info("no matching customer in mock data",
		zap.String("loan_id", loanID), zap.String("system_id", systemID))
	return Result{}, nil
}
