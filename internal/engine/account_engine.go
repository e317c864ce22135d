package engine

import (
	"context"
	"fmt"

	"cryptofolio/internal/exchange"
	"cryptofolio/internal/model"
	"cryptofolio/internal/repository"
	"cryptofolio/pkg/logger"
	"cryptofolio/pkg/utils"
)

// AccountEngine probes every linked exchange account with a signed
// account query and persists whether the credentials still work. The
// dashboard surfaces the resulting online/offline flag.
type AccountEngine struct {
	log       *logger.Logger
	accounts  repository.AccountRepository
	exchanges exchange.Factory
}

func NewAccountEngine(log *logger.Logger, accounts repository.AccountRepository, exchanges exchange.Factory) *AccountEngine {
	return &AccountEngine{
		log:       log,
		accounts:  accounts,
		exchanges: exchanges,
	}
}

func (e *AccountEngine) Run(ctx context.Context) error {
	accounts, err := e.accounts.Get(ctx, repository.GetAccountsParam{})
	if err != nil {
		return fmt.Errorf("failed to load exchange accounts: %w", err)
	}

	for _, account := range accounts {
		if !utils.ShouldContinue(ctx, e.log) {
			return nil
		}

		status := model.AccountStatusOnline
		if err := e.probe(ctx, account); err != nil {
			status = model.AccountStatusOffline
			e.log.WarnContext(ctx, "Account probe failed",
				logger.IntField("account_id", int(account.ID)),
				logger.StringField("exchange", account.Exchange),
				logger.ErrorField(err),
			)
		}

		if err := e.accounts.SetStatus(ctx, account.ID, status); err != nil {
			return fmt.Errorf("failed to persist status for account %d: %w", account.ID, err)
		}
		e.log.InfoContext(ctx, "Account status updated",
			logger.IntField("account_id", int(account.ID)),
			logger.StringField("status", string(status)),
		)
	}
	return nil
}

func (e *AccountEngine) probe(ctx context.Context, account model.ExchangeAccount) error {
	client, err := e.exchanges.ClientFor(account.Exchange, exchange.Credentials{
		APIKey:    account.APIKey,
		APISecret: account.APISecret,
	})
	if err != nil {
		return err
	}
	return client.AccountStatus(ctx)
}
