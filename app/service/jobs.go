package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RunReconcileBatch sweeps open payments nobody has touched for a while and
// feeds their gateway status through the reconciler. It catches payments
// whose webhook was lost and whose monitor ran out or died with the process.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	before := time.Now().UTC().Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	transitioned := 0
	for _, payment := range items {
		if payment == nil {
			continue
		}
		gatewayID := payment.GatewayID()
		if gatewayID == "" {
			continue
		}

		observed, err := s.gateway.GetPayment(ctx, gatewayID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		result, err := s.reconciler.Reconcile(ctx, gatewayID, observed, SourceSweep)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if result.Outcome == OutcomeTransitioned {
			transitioned++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scanned":      len(items),
		"transitioned": transitioned,
	}).Info("Reconcile batch finished")

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
