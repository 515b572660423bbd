package ingest

import (
	"fmt"
	"strings"
)

// columnMap holds the resolved header positions; optional columns are -1.
type columnMap struct {
	date         int
	amount       int
	counterparty int
	balance      int
	description  int
}

var headerSynonyms = map[string][]string{
	"date":         {"date", "transaction date", "payment date", "value date", "operation date"},
	"amount":       {"amount", "credit", "payment amount", "credit amount", "sum", "turnover credit"},
	"counterparty": {"counterparty", "counterparty name", "customer", "payer", "payer name", "partner", "sender", "name"},
	"balance":      {"balance", "balance after", "balance after transaction", "available balance", "rest"},
	"description":  {"description", "details", "purpose", "payment details", "docinformation"},
}

// detectColumns locates the known columns in the header row. Date, amount
// and counterparty are required; balance and description are optional
// because the manual cash sheet has neither.
func detectColumns(header []string) (columnMap, error) {
	cols := columnMap{date: -1, amount: -1, counterparty: -1, balance: -1, description: -1}
	assign := map[string]*int{
		"date":         &cols.date,
		"amount":       &cols.amount,
		"counterparty": &cols.counterparty,
		"balance":      &cols.balance,
		"description":  &cols.description,
	}
	for i, raw := range header {
		token := strings.ToLower(normalizeCell(raw))
		if token == "" {
			continue
		}
		for field, names := range headerSynonyms {
			if *assign[field] >= 0 {
				continue
			}
			for _, name := range names {
				if token == name {
					*assign[field] = i
					break
				}
			}
		}
	}
	var missing []string
	for _, field := range []string{"date", "amount", "counterparty"} {
		if *assign[field] < 0 {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("required columns not found: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}
