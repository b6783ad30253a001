package pdf

import (
	"context"
	"io"

	salarydomain "github.com/smallbiznis/backoffice/internal/salary/domain"
)

type Provider interface {
	GenerateSlip(ctx context.Context, slip salarydomain.Slip) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateSlip(ctx context.Context, slip salarydomain.Slip) (io.Reader, error) {
	return nil, nil
}
