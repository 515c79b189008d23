package dto

import "billpos/internal/settlement"

type PeriodResponse struct {
	ID        string  `json:"id"`
	OpenedAt  string  `json:"opened_at"`
	ClosedAt  *string `json:"closed_at,omitempty"`
	OpenBills int64   `json:"open_bills"`
}

type PeriodReportResponse struct {
	Period PeriodResponse          `json:"period"`
	Totals settlement.PeriodTotals `json:"totals"`
	Lines  []string                `json:"lines"`
}
