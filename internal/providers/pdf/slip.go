package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	salarydomain "github.com/smallbiznis/backoffice/internal/salary/domain"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateSlip(ctx context.Context, slip salarydomain.Slip) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Salary slip", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New(slip.UserName, props.Text{Style: fontstyle.Bold}),
			text.New("Period: "+slip.Period, props.Text{Top: 5}),
		),
		col.New(6).Add(
			text.New("Currency: "+slip.DisplayCurrency, props.Text{Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(4, "Component", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Source amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Currency", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range slip.Lines {
		amount := line.Converted
		if line.Sign < 0 {
			amount = amount.Neg()
		}
		m.AddRow(8,
			text.NewCol(4, line.DisplayName, props.Text{Size: 9}),
			text.NewCol(3, line.Amount.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, line.Currency, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, amount.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, slip.Total.StringFixed(2)+" "+slip.DisplayCurrency, props.Text{
			Style: fontstyle.Bold,
			Size:  10,
			Align: align.Right,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
