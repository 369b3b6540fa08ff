package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hw-inventory/internal/models"
)

type StockAlert struct {
	Model        models.HardwareModel `json:"model"`
	ModelName    string               `json:"model_name"`
	CurrentCount int64                `json:"current_count"`
	Threshold    int                  `json:"threshold"`
}

type StockSummary struct {
	Counts       map[models.HardwareModel]int64 `json:"stock_counts"`
	Thresholds   map[models.HardwareModel]int   `json:"thresholds"`
	Alerts       []StockAlert                   `json:"alerts"`
	TotalInStock int64                          `json:"total_in_stock"`
}

// StockService compares IN_STOCK counts per model with the configured minimums.
type StockService struct {
	db         *gorm.DB
	thresholds map[models.HardwareModel]int
}

func NewStockService(db *gorm.DB, thresholds map[models.HardwareModel]int) *StockService {
	return &StockService{db: db, thresholds: thresholds}
}

func (s *StockService) Counts(ctx context.Context) (map[models.HardwareModel]int64, error) {
	var rows []struct {
		Model string
		Hits  int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Hardware{}).
		Where("status = ?", string(models.StatusInStock)).
		Select("model, COUNT(*) AS hits").Group("model").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count stock: %w", err)
	}

	counts := make(map[models.HardwareModel]int64, len(models.HardwareModels))
	for _, m := range models.HardwareModels {
		counts[m] = 0
	}
	for _, r := range rows {
		counts[models.HardwareModel(r.Model)] = r.Hits
	}
	return counts, nil
}

// Alerts lists models below their threshold, in display order.
func (s *StockService) Alerts(ctx context.Context) ([]StockAlert, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return s.alerts(counts), nil
}

func (s *StockService) alerts(counts map[models.HardwareModel]int64) []StockAlert {
	alerts := []StockAlert{}
	for _, m := range models.HardwareModels {
		threshold, ok := s.thresholds[m]
		if !ok {
			continue
		}
		if current := counts[m]; current < int64(threshold) {
			alerts = append(alerts, StockAlert{
				Model:        m,
				ModelName:    m.DisplayName(),
				CurrentCount: current,
				Threshold:    threshold,
			})
		}
	}
	return alerts
}

func (s *StockService) Summary(ctx context.Context) (*StockSummary, error) {
	counts, err := s.Counts(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return &StockSummary{
		Counts:       counts,
		Thresholds:   s.thresholds,
		Alerts:       s.alerts(counts),
		TotalInStock: total,
	}, nil
}
