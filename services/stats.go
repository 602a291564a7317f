package services

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"phishdrill/models"
)

const unassignedDepartment = "Unassigned"

// Rates are percentages rounded to one decimal. Click rate is measured
// against opens, submission rate against clicks.
type Rates struct {
	OpenRate       float64 `json:"open_rate"`
	ClickRate      float64 `json:"click_rate"`
	SubmissionRate float64 `json:"submission_rate"`
}

// Funnel holds the per-stage result counts
type Funnel struct {
	Sent      int64 `json:"sent"`
	Opened    int64 `json:"opened"`
	Clicked   int64 `json:"clicked"`
	Submitted int64 `json:"submitted"`
}

type Overview struct {
	Targets   int64 `json:"targets"`
	Campaigns int64 `json:"campaigns"`
	Funnel
}

type OverallStats struct {
	Overview
	Rates
}

type CampaignStats struct {
	CampaignID uint  `json:"campaign_id"`
	Total      int64 `json:"total"`
	Funnel
	Rates
}

type DepartmentStat struct {
	Department string  `json:"department"`
	Total      int64   `json:"total"`
	Submitted  int64   `json:"submitted"`
	Rate       float64 `json:"submission_rate"`
}

// StatsService derives every figure from campaign_results on each call
type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// CalculateRates applies the funnel rate formulas
func CalculateRates(f Funnel) Rates {
	return Rates{
		OpenRate:       percentage(f.Opened, f.Sent),
		ClickRate:      percentage(f.Clicked, f.Opened),
		SubmissionRate: percentage(f.Submitted, f.Clicked),
	}
}

// percentage returns part/whole*100 rounded to one decimal, 0 when whole is 0
func percentage(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

const funnelSelect = `COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN email_sent = ? THEN 1 ELSE 0 END), 0) AS sent,
	COALESCE(SUM(CASE WHEN email_opened = ? THEN 1 ELSE 0 END), 0) AS opened,
	COALESCE(SUM(CASE WHEN link_clicked = ? THEN 1 ELSE 0 END), 0) AS clicked,
	COALESCE(SUM(CASE WHEN credentials_submitted = ? THEN 1 ELSE 0 END), 0) AS submitted`

type funnelRow struct {
	Total     int64
	Sent      int64
	Opened    int64
	Clicked   int64
	Submitted int64
}

func (s *StatsService) funnel(db *gorm.DB) (funnelRow, error) {
	var row funnelRow
	err := db.Model(&models.CampaignResult{}).
		Select(funnelSelect, true, true, true, true).
		Scan(&row).Error
	return row, err
}

func (s *StatsService) Overview(ctx context.Context) (*Overview, error) {
	db := s.db.WithContext(ctx)

	var out Overview
	if err := db.Model(&models.Target{}).Count(&out.Targets).Error; err != nil {
		return nil, fmt.Errorf("failed to count targets: %w", err)
	}
	if err := db.Model(&models.Campaign{}).Count(&out.Campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to count campaigns: %w", err)
	}
	row, err := s.funnel(db)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	out.Funnel = Funnel{Sent: row.Sent, Opened: row.Opened, Clicked: row.Clicked, Submitted: row.Submitted}
	return &out, nil
}

// Overall is the overview plus system-wide rates
func (s *StatsService) Overall(ctx context.Context) (*OverallStats, error) {
	overview, err := s.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return &OverallStats{Overview: *overview, Rates: CalculateRates(overview.Funnel)}, nil
}

func (s *StatsService) Campaign(ctx context.Context, campaignID uint) (*CampaignStats, error) {
	db := s.db.WithContext(ctx)

	var campaign models.Campaign
	if err := db.Select("id").First(&campaign, campaignID).Error; err != nil {
		return nil, notFound("campaign", err)
	}

	row, err := s.funnel(db.Where("campaign_id = ?", campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to count campaign results: %w", err)
	}
	funnel := Funnel{Sent: row.Sent, Opened: row.Opened, Clicked: row.Clicked, Submitted: row.Submitted}
	return &CampaignStats{
		CampaignID: campaignID,
		Total:      row.Total,
		Funnel:     funnel,
		Rates:      CalculateRates(funnel),
	}, nil
}

// Departments groups targets that received at least one email by department
func (s *StatsService) Departments(ctx context.Context) ([]DepartmentStat, error) {
	var rows []DepartmentStat
	err := s.db.WithContext(ctx).Raw(`
		SELECT t.department AS department,
			COUNT(DISTINCT t.id) AS total,
			COUNT(DISTINCT CASE WHEN cr.credentials_submitted = ? THEN t.id END) AS submitted
		FROM targets t
		JOIN campaign_results cr ON cr.target_id = t.id
		WHERE cr.email_sent = ?
		GROUP BY t.department
		ORDER BY t.department`, true, true).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load department breakdown: %w", err)
	}

	for i := range rows {
		if rows[i].Department == "" {
			rows[i].Department = unassignedDepartment
		}
		rows[i].Rate = percentage(rows[i].Submitted, rows[i].Total)
	}
	return rows, nil
}
