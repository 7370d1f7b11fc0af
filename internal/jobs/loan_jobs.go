package jobs

import (
	"context"

	"go.uber.org/zap"

	"toolrental/internal/logger"
)

// ReportOverdueLoans logs every overdue loan and the total count.
func (jr *JobRunner) ReportOverdueLoans() {
	jr.runWithRecovery("ReportOverdueLoans", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		views, err := jr.loans.ListOverdue(ctx)
		if err != nil {
			logger.Error("Failed to list overdue loans", zap.Error(err))
			return
		}

		for _, v := range views {
			logger.Warn("Loan overdue",
				zap.Int64("loan_id", v.ID),
				zap.Int64("customer_id", v.CustomerID),
				zap.String("customer", v.CustomerName),
				zap.String("tool_group", v.ToolGroupName),
				zap.Time("due_date", v.DueDate),
			)
		}

		logger.Info("Overdue loan report", zap.Int("overdue", len(views)))
	})
}
