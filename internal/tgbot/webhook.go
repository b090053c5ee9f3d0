package tgbot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AllowedUpdates are the update kinds the shop consumes.
var AllowedUpdates = []string{"pre_checkout_query", "message", "callback_query"}

// SetWebhook registers url with Telegram. setWebhook goes through MakeRequest
// because the library's WebhookConfig has no secret_token.
func (a *App) SetWebhook(url string, dropPending bool) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", url)
	params.AddNonEmpty("secret_token", a.cfg.WebhookSecret)
	params.AddBool("drop_pending_updates", dropPending)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return err
	}

	if _, err := a.bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

func (a *App) DeleteWebhook(dropPending bool) error {
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

func (a *App) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return a.bot.GetWebhookInfo()
}

func (a *App) Me() (tgbotapi.User, error) {
	return a.bot.GetMe()
}
