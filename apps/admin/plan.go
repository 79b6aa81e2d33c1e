package main

import (
	"fmt"

	"github.com/nxuacademy/backend/core/billing"
)

func (cli *commandLine) printPlan(amount int64) error {
	breakdown, err := billing.ComputePlan(amount)
	if err != nil {
		return err
	}

	fmt.Printf("total:             %d\n", breakdown.TotalAmount)
	fmt.Printf("deposit:           %d\n", breakdown.DepositAmount)
	fmt.Printf("monthly:           %d x %d\n", breakdown.RemainingPayments-1, breakdown.MonthlyAmount)
	fmt.Printf("final installment: %d\n", breakdown.InstallmentAmount(1))
	return nil
}
