package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/polartar/vtvl-app-sub002/internal/config"
	"github.com/polartar/vtvl-app-sub002/internal/repository"
	"github.com/polartar/vtvl-app-sub002/internal/service"
	"github.com/polartar/vtvl-app-sub002/pkg/logger"
)

const defaultCronExpr = "0 */10 * * * *"

type ReconcileScheduler struct {
	cron         *cron.Cron
	reconcileSvc *service.ReconcileService
	scheduleRepo *repository.ScheduleRepository
	chains       []config.ChainConfig
	cronExpr     string
}

func NewReconcileScheduler(
	reconcileSvc *service.ReconcileService,
	scheduleRepo *repository.ScheduleRepository,
	chains []config.ChainConfig,
	cronExpr string,
) *ReconcileScheduler {
	if cronExpr == "" {
		cronExpr = defaultCronExpr
	}
	return &ReconcileScheduler{
		cron:         cron.New(cron.WithSeconds()),
		reconcileSvc: reconcileSvc,
		scheduleRepo: scheduleRepo,
		chains:       chains,
		cronExpr:     cronExpr,
	}
}

func (s *ReconcileScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.runReconciliation)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Reconciliation scheduler started")
	return nil
}

func (s *ReconcileScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Reconciliation scheduler stopped")
}

func (s *ReconcileScheduler) runReconciliation() {
	ctx := context.Background()

	for _, chain := range s.chains {
		if !chain.Enabled {
			continue
		}

		go s.reconcileChain(ctx, chain.ID)
	}
}

func (s *ReconcileScheduler) reconcileChain(ctx context.Context, chainID string) {
	orgs, err := s.scheduleRepo.GetOrganizations(ctx, chainID)
	if err != nil {
		logger.Error("Failed to get organizations for chain:", chainID, err)
		return
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":   chainID,
		"orgs_count": len(orgs),
	}).Info("Processing chain organizations")

	for _, orgID := range orgs {
		summary, err := s.reconcileSvc.ReconcileOrganization(ctx, orgID, chainID)
		if err != nil {
			logger.Error("Failed to reconcile organization:", orgID, err)
			continue
		}

		if summary.UnavailableCount > 0 {
			logger.WithFields(map[string]interface{}{
				"chain_id":    chainID,
				"org_id":      orgID,
				"unavailable": summary.UnavailableCount,
			}).Warn("Some recipients could not be reconciled")
		}
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
	}).Info("Reconciliation completed for chain")
}

// TriggerManualReconciliation 手动触发一次组织对账
func (s *ReconcileScheduler) TriggerManualReconciliation(ctx context.Context, orgID, chainID string) error {
	_, err := s.reconcileSvc.ReconcileOrganization(ctx, orgID, chainID)
	return err
}
