package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"carvision/internal/domain/entity"
	"carvision/internal/domain/port"
	"carvision/internal/logging"
)

const (
	msgNoDetections = "✅ Повреждения и детали не обнаружены."
	msgNoDamage     = "✅ Повреждения не обнаружены."
	msgFailed       = "⚠️ Не удалось обработать изображение"
	msgHeader       = "🚗 Результат проверки"
	msgDamage       = "🔴 Повреждения"
	msgParts        = "🔵 Детали"
	msgLocations    = "📍 Расположение"
)

// sender часть tgbotapi.BotAPI, нужная для отправки отчётов
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reporter отправляет результаты проверки в Telegram-чат
type Reporter struct {
	api    sender
	chatID int64
	logger *slog.Logger
}

// NewReporter авторизуется в Telegram и создаёт отправителя отчётов
func NewReporter(token string, chatID int64, logger *slog.Logger) (*Reporter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger = logging.OrDiscard(logger)
	logger.Info("telegram reporter authorized", slog.String("account", api.Self.UserName))

	return &Reporter{api: api, chatID: chatID, logger: logger}, nil
}

// Publish отправляет текст отчёта и, если есть, изображение с подсветкой
func (r *Reporter) Publish(ctx context.Context, report entity.ImageReport, rendered []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := FormatReport(report)
	if len(rendered) == 0 || report.Failed() {
		_, err := r.api.Send(tgbotapi.NewMessage(r.chatID, text))
		return err
	}

	name := strings.TrimSuffix(filepath.Base(report.Image), filepath.Ext(report.Image)) + ".jpg"
	photo := tgbotapi.NewPhoto(r.chatID, tgbotapi.FileBytes{Name: name, Bytes: rendered})
	photo.Caption = text
	if _, err := r.api.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// FormatReport формирует текст сообщения по результату одного изображения
func FormatReport(report entity.ImageReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", msgHeader, filepath.Base(report.Image))

	if report.Failed() {
		fmt.Fprintf(&b, "%s: %s", msgFailed, report.Error)
		return b.String()
	}
	if report.Result == nil || report.Result.Empty() {
		b.WriteString(msgNoDetections)
		return b.String()
	}

	if len(report.Result.Damage) == 0 {
		b.WriteString(msgNoDamage + "\n")
	} else {
		b.WriteString("\n" + msgDamage + ":\n")
		for _, d := range report.Result.Damage {
			fmt.Fprintf(&b, "• %s\n", d.Label())
		}
	}

	if len(report.Result.Part) > 0 {
		b.WriteString("\n" + msgParts + ":\n")
		for _, d := range report.Result.Part {
			fmt.Fprintf(&b, "• %s\n", d.Label())
		}
	}

	if len(report.Locations) > 0 {
		b.WriteString("\n" + msgLocations + ":\n")
		for _, loc := range report.Locations {
			fmt.Fprintf(&b, "• %s\n", loc.Describe())
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// Проверка реализации интерфейса
var _ port.ReportPublisher = (*Reporter)(nil)
