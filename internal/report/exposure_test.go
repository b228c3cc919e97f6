package report

import (
	"math"
	"testing"

	"github.com/algolend/kestrel/internal/domain"
)

func TestExposure(t *testing.T) {
	accounts := []domain.AccountRecord{
		{Category: domain.CategoryRevolving, CurrentBalance: 15000, CreditLimit: 50000, InstallmentAmt: 1500},
		{Category: domain.CategoryRevolving, CurrentBalance: 5000, CreditLimit: 10000},
		{Category: domain.CategoryInstallment, CurrentBalance: 250000, CreditLimit: 300000, InstallmentAmt: 4200, IsInArrears: true},
		{Category: domain.CategoryOther, CurrentBalance: 800, IsClosed: true},
	}

	s := Exposure(accounts)

	if s.TotalAccounts != 4 || s.OpenAccounts != 3 || s.ClosedAccounts != 1 {
		t.Errorf("counts = %d/%d/%d", s.TotalAccounts, s.OpenAccounts, s.ClosedAccounts)
	}
	if s.DelinquentAccounts != 1 {
		t.Errorf("delinquent = %d", s.DelinquentAccounts)
	}
	if s.RevolvingAccounts != 2 || s.RevolvingBalance != 20000 || s.RevolvingLimits != 60000 {
		t.Errorf("revolving = %d/%v/%v", s.RevolvingAccounts, s.RevolvingBalance, s.RevolvingLimits)
	}
	if s.InstallmentAccounts != 1 || s.InstallmentBalance != 250000 {
		t.Errorf("installment = %d/%v", s.InstallmentAccounts, s.InstallmentBalance)
	}
	if s.OtherAccounts != 1 {
		t.Errorf("other = %d", s.OtherAccounts)
	}
	if s.TotalMonthlyInstal != 5700 {
		t.Errorf("monthly installments = %v", s.TotalMonthlyInstal)
	}

	if s.UtilizationRatio == nil {
		t.Fatal("utilization ratio should be set")
	}
	if math.Abs(*s.UtilizationRatio-20000.0/60000.0) > 1e-9 {
		t.Errorf("utilization = %v", *s.UtilizationRatio)
	}
	pct := s.UtilizationPercent()
	if pct == nil || math.Abs(*pct-100.0/3.0) > 1e-6 {
		t.Errorf("utilization percent = %v", pct)
	}
}

func TestExposureNoRevolvingLimits(t *testing.T) {
	accounts := []domain.AccountRecord{
		{Category: domain.CategoryRevolving, CurrentBalance: 500, CreditLimit: 0},
		{Category: domain.CategoryInstallment, CurrentBalance: 1000},
	}
	s := Exposure(accounts)
	if s.UtilizationRatio != nil {
		t.Errorf("utilization = %v, want nil when limits are zero", *s.UtilizationRatio)
	}
	if s.UtilizationPercent() != nil {
		t.Error("utilization percent should be nil too")
	}
}

func TestExposureEmptyLedger(t *testing.T) {
	s := Exposure(nil)
	if s.TotalAccounts != 0 {
		t.Errorf("total = %d", s.TotalAccounts)
	}
	if s.UtilizationRatio != nil {
		t.Error("utilization should be nil for empty ledger")
	}
}
