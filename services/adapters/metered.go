package adapters

import (
	"context"

	"github.com/sahilchouksey/module-enhancer/utils/logger"
)

// CostRecorder appends an entry to the API cost ledger
type CostRecorder interface {
	RecordSimpleAPICall(ctx context.Context, provider, service string, estimatedCost float64) error
}

// MeteredTextGenerator records every successful generation in the cost ledger.
// Ledger failures are logged and never affect the generation result.
type MeteredTextGenerator struct {
	next     TextGenerator
	ledger   CostRecorder
	provider string
	costPer  float64
	log      *logger.Logger
}

func NewMeteredTextGenerator(next TextGenerator, ledger CostRecorder, provider string, costPerCall float64, log *logger.Logger) *MeteredTextGenerator {
	return &MeteredTextGenerator{
		next:     next,
		ledger:   ledger,
		provider: provider,
		costPer:  costPerCall,
		log:      log,
	}
}

func (m *MeteredTextGenerator) Generate(ctx context.Context, req TextRequest) (string, error) {
	out, err := m.next.Generate(ctx, req)
	if err != nil {
		return "", err
	}

	if m.ledger != nil {
		if lerr := m.ledger.RecordSimpleAPICall(context.WithoutCancel(ctx), m.provider, "text-generation", m.costPer); lerr != nil {
			m.log.Warn("Failed to record api call", "provider", m.provider, "error", lerr)
		}
	}
	return out, nil
}
