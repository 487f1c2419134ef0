package services

import (
	"pitstop/config"
	"pitstop/internal/database"
)

type Service struct {
	Transaction *TransactionService
	Scheduler   *SchedulerService
	Retry       *RetryService
	Token       *TokenService
}

func New(db database.DB, config config.Config) (Service, error) {
	return Service{
		Transaction: NewTransactionService(db),
		Scheduler:   NewSchedulerService(),
		Retry:       NewRetryService(),
		Token:       NewTokenService(config),
	}, nil
}
