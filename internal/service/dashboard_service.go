package service

import (
	"go-marketplace/internal/repository"
)

type DashboardService interface {
	GetSalesSummary(sellerID string) (*repository.SalesSummary, error)
}

type dashboardService struct {
	txRepo repository.TransactionRepository
}

func NewDashboardService(txRepo repository.TransactionRepository) DashboardService {
	return &dashboardService{txRepo: txRepo}
}

func (s *dashboardService) GetSalesSummary(sellerID string) (*repository.SalesSummary, error) {
	summary, err := s.txRepo.GetSalesSummary(sellerID)
	if err != nil {
		return nil, err
	}
	if summary.ByStatus == nil {
		summary.ByStatus = []repository.StatusBreakdown{}
	}
	return summary, nil
}
