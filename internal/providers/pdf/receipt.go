package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	Header

	ReceiptNumber string
	DatePaid      string
	Method        string
	Reference     string

	// Items lists the invoices the payment settled.
	Items []LineItem

	AmountPaid    string
	Credited      string
	CreditBalance string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) (io.Reader, error) {
	m := newDocument()
	addHeader(m, "Payment Receipt", receipt.Header)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 4}),
			text.New("Method: "+receipt.Method, props.Text{Top: 8}),
			text.New("Reference: "+receipt.Reference, props.Text{Top: 12}),
		),
		col.New(6),
	)

	m.AddRow(15,
		text.NewCol(12, receipt.AmountPaid+" paid on "+receipt.DatePaid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	addItems(m, receipt.Items)
	addTotal(m, "Amount paid", receipt.AmountPaid, true)
	if receipt.Credited != "" {
		addTotal(m, "Carried as credit", receipt.Credited, false)
		addTotal(m, "Credit balance", receipt.CreditBalance, false)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
