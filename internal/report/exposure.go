package report

import (
	"github.com/algolend/kestrel/internal/domain"
)

// Exposure aggregates the account ledger into a single-pass summary.
// The utilization ratio stays nil when no revolving limits are
// reported: 0/0 is missing data, not 0% utilization.
func Exposure(accounts []domain.AccountRecord) *domain.ExposureSummary {
	s := &domain.ExposureSummary{}
	for _, a := range accounts {
		s.TotalAccounts++
		if a.IsClosed {
			s.ClosedAccounts++
		} else {
			s.OpenAccounts++
		}

		s.TotalBalance += a.CurrentBalance
		s.TotalLimits += a.CreditLimit

		switch a.Category {
		case domain.CategoryRevolving:
			s.RevolvingAccounts++
			s.RevolvingBalance += a.CurrentBalance
			s.RevolvingLimits += a.CreditLimit
		case domain.CategoryInstallment:
			s.InstallmentAccounts++
			s.InstallmentBalance += a.CurrentBalance
		default:
			s.OtherAccounts++
		}

		if a.IsInArrears {
			s.DelinquentAccounts++
		}
		if a.InstallmentAmt > 0 {
			s.TotalMonthlyInstal += a.InstallmentAmt
		}
	}

	if s.RevolvingLimits > 0 {
		ratio := s.RevolvingBalance / s.RevolvingLimits
		s.UtilizationRatio = &ratio
	}
	return s
}
