package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// QRSize is the edge of generated QR images in pixels
const QRSize = 256

// QRCode renders a PNG QR code pointing at the join deep link for code
func (b *Bot) QRCode(code string) ([]byte, error) {
	link := b.DeepLink(code)
	if link == "" {
		return nil, fmt.Errorf("bot username is unknown")
	}

	png, err := qrcode.Encode(link, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

// sendQRCode sends the join QR code as a photo; the plain code was already sent
func (b *Bot) sendQRCode(chatID int64, code string) {
	png, err := b.QRCode(code)
	if err != nil {
		b.logger.Warn("skipping QR code", "code", code, "error", err)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "pair-" + code + ".png", Bytes: png})
	photo.Caption = "📷 Или пусть второй участник отсканирует этот QR-код"
	if _, err := b.api.Send(photo); err != nil {
		b.logger.Error("error sending QR code", "chat_id", chatID, "error", err)
	}
}
