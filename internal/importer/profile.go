package importer

import "strings"

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSingle means one amount column (e.g. "Importe total").
	amountSingle amountMode = iota
	// amountSplit means separate charge and credit columns; only charges
	// are expenses.
	amountSplit
)

// formalRule says how a profile knows whether a receipt is invoiced.
type formalRule int

const (
	formalUnknown formalRule = iota
	formalColumn
)

// Profile describes the column layout of a receipt export.
// Adding a new format is just adding a new Profile to the profiles slice.
type Profile struct {
	Name        string
	DateCol     string
	MerchantCol string
	AmountMode  amountMode
	AmountCol   string // used when AmountMode == amountSingle
	DebitCol    string // used when AmountMode == amountSplit
	CreditCol   string // used when AmountMode == amountSplit
	CategoryCol string // optional
	Formal      formalRule
	FormalCol   string
	// FormalValue interprets the FormalCol cell.
	FormalValue func(string) bool
}

func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.MerchantCol}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.AmountCol)
	case amountSplit:
		cols = append(cols, p.DebitCol, p.CreditCol)
	}

	if p.Formal == formalColumn {
		cols = append(cols, p.FormalCol)
	}

	return cols
}

// profiles is the ordered list of formats tried during auto-detection.
// More specific profiles come first to avoid false matches.
var profiles = []Profile{
	{
		Name:        "registro-compras",
		DateCol:     "Fecha de emisión",
		MerchantCol: "Razón social",
		AmountMode:  amountSingle,
		AmountCol:   "Importe total",
		CategoryCol: "Categoría",
		Formal:      formalColumn,
		FormalCol:   "Tipo de comprobante",
		FormalValue: invoiceType,
	},
	{
		Name:        "treevu",
		DateCol:     "fecha",
		MerchantCol: "comercio",
		AmountMode:  amountSingle,
		AmountCol:   "monto",
		CategoryCol: "categoria",
		Formal:      formalColumn,
		FormalCol:   "formal",
		FormalValue: yes,
	},
	{
		Name:        "estado-cuenta",
		DateCol:     "Fecha",
		MerchantCol: "Descripción",
		AmountMode:  amountSplit,
		DebitCol:    "Cargo",
		CreditCol:   "Abono",
	},
}

// invoiceType reports whether a SUNAT document type grants tax credit:
// facturas (01) and boletas (03).
func invoiceType(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))

	switch {
	case s == "01", s == "1", s == "03", s == "3":
		return true
	case strings.HasPrefix(s, "factura"), strings.HasPrefix(s, "boleta"):
		return true
	}

	return false
}

func yes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí", "s", "yes", "y", "true", "1", "x":
		return true
	}

	return false
}
