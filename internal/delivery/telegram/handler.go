package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

// MaxFeedSize Telegram orqali qabul qilinadigan fayl hajmi
const MaxFeedSize = 20 * 1024 * 1024

const listLimit = 10

var milestones = []int{25, 50, 75}

// ImportService is what the bot needs from the import pipeline.
type ImportService interface {
	SubmitImport(ctx context.Context, raw []byte, metadata map[string]string) (string, error)
	GetJob(ctx context.Context, id string) (*entity.Job, error)
	ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error)
	CancelJob(ctx context.Context, id string) (*entity.Job, error)
	Subscribe(id string) (<-chan entity.JobEvent, func())
	ExportReport(ctx context.Context, id string) ([]byte, string, error)
	CheckStorage(ctx context.Context) (entity.StorageSize, entity.StorageStatus, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotHandler Telegram bot handler
type BotHandler struct {
	bot      *tgbotapi.BotAPI
	api      sender
	imports  ImportService
	admins   map[int64]bool
	download func(fileID string) ([]byte, error)
	log      *logrus.Entry
}

// NewBotHandler yangi bot handler yaratish
func NewBotHandler(token string, adminIDs []int64, imports ImportService) (*BotHandler, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h := newHandler(bot, adminIDs, imports)
	h.bot = bot
	h.download = h.downloadFile
	return h, nil
}

func newHandler(api sender, adminIDs []int64, imports ImportService) *BotHandler {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &BotHandler{
		api:     api,
		imports: imports,
		admins:  admins,
		log:     logger.Component("bot"),
	}
}

// Start botni ishga tushirish
func (h *BotHandler) Start(ctx context.Context) error {
	h.log.Infof("Bot @%s ishga tushdi!", h.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("Bot to'xtatilmoqda...")
			h.bot.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			go h.handleMessage(ctx, update.Message)
		}
	}
}

func (h *BotHandler) isAdmin(message *tgbotapi.Message) bool {
	if message.From != nil && h.admins[message.From.ID] {
		return true
	}
	return message.Chat != nil && h.admins[message.Chat.ID]
}

// handleMessage xabarni qayta ishlash
func (h *BotHandler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if !h.isAdmin(message) {
		if message.IsCommand() && message.Command() == "start" {
			h.sendMessage(chatID, fmt.Sprintf("Bu bot faqat adminlar uchun. Sizning chat ID: %d", chatID))
		}
		return
	}

	if message.Document != nil {
		h.handleDocumentMessage(ctx, message)
		return
	}

	if message.IsCommand() {
		h.handleCommand(ctx, message)
	}
}

// handleCommand komandalarni qayta ishlash
func (h *BotHandler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	arg := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		h.sendMessage(chatID, helpMessage)
	case "jobs":
		h.handleJobsCommand(ctx, chatID, arg)
	case "status":
		h.withJobID(chatID, arg, func(id string) { h.handleStatusCommand(ctx, chatID, id) })
	case "cancel":
		h.withJobID(chatID, arg, func(id string) { h.handleCancelCommand(ctx, chatID, id) })
	case "report":
		h.withJobID(chatID, arg, func(id string) { h.handleReportCommand(ctx, chatID, id) })
	case "storage":
		h.handleStorageCommand(ctx, chatID)
	default:
		h.sendMessage(chatID, "Noma'lum komanda. /help yordam uchun.")
	}
}

const helpMessage = `📥 Katalog import boti

XML faylni (offer yoki catalog formatida) yuboring, import fonda boshlanadi.

/jobs [status] - oxirgi joblar
/status <id> - job holati
/cancel <id> - jobni bekor qilish
/report <id> - Excel hisobot
/storage - baza hajmi`

func (h *BotHandler) withJobID(chatID int64, arg string, fn func(id string)) {
	if arg == "" {
		h.sendMessage(chatID, "Job ID ko'rsating, masalan: /status <id>")
		return
	}
	fn(arg)
}

// handleDocumentMessage XML fayl yuborilganda
func (h *BotHandler) handleDocumentMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	doc := message.Document

	if doc.FileSize > MaxFeedSize {
		h.sendMessage(chatID, fmt.Sprintf("❌ Fayl hajmi %d MB dan oshmasligi kerak!", MaxFeedSize/1024/1024))
		return
	}
	if !strings.EqualFold(filepath.Ext(doc.FileName), ".xml") {
		h.sendMessage(chatID, "❌ Faqat XML fayllar (.xml) qabul qilinadi!")
		return
	}

	raw, err := h.download(doc.FileID)
	if err != nil {
		h.log.WithError(err).WithField("file", doc.FileName).Error("Fayl yuklanmadi")
		h.sendMessage(chatID, "❌ Faylni yuklashda xatolik yuz berdi.")
		return
	}

	meta := map[string]string{
		"file":    doc.FileName,
		"chat_id": fmt.Sprint(chatID),
	}
	if message.From != nil {
		meta["user"] = message.From.UserName
	}

	id, err := h.imports.SubmitImport(ctx, raw, meta)
	if err != nil {
		h.log.WithError(err).Error("Import boshlanmadi")
		h.sendMessage(chatID, fmt.Sprintf("❌ Import boshlanmadi: %v", err))
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("⏳ Import boshlandi\nJob: %s\nFayl: %s", id, doc.FileName))
	go h.watchJob(chatID, id)
}

// watchJob pushes progress milestones and the final state to the chat.
func (h *BotHandler) watchJob(chatID int64, id string) {
	events, unsubscribe := h.imports.Subscribe(id)
	defer unsubscribe()

	next := 0
	for ev := range events {
		job := ev.Job
		if job == nil {
			continue
		}
		if job.Status.IsTerminal() {
			h.sendMessage(chatID, formatJob(job))
			return
		}
		if ev.Type == entity.EventJobCancelled {
			h.sendMessage(chatID, fmt.Sprintf("🛑 Job %s bekor qilinmoqda...", id))
			continue
		}
		reached := -1
		for next < len(milestones) && job.Progress >= milestones[next] {
			reached = milestones[next]
			next++
		}
		if reached > 0 {
			h.sendMessage(chatID, fmt.Sprintf("🔄 %s: %d%% (%s)", shortID(id), job.Progress, job.Stage))
		}
	}
}

func (h *BotHandler) handleJobsCommand(ctx context.Context, chatID int64, arg string) {
	filter := entity.JobFilter{Status: entity.JobStatus(strings.ToLower(arg)), Limit: listLimit}
	jobs, err := h.imports.ListJobs(ctx, filter)
	if err != nil {
		h.log.WithError(err).Error("Joblar olinmadi")
		h.sendMessage(chatID, "❌ Joblarni olishda xatolik.")
		return
	}
	if len(jobs) == 0 {
		h.sendMessage(chatID, "Hali joblar yo'q.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Oxirgi joblar:\n\n")
	for _, job := range jobs {
		fmt.Fprintf(&sb, "%s %s  %s %d%%  %s\n",
			statusIcon(job.Status), job.ID, job.Status, job.Progress, job.CreatedAt.Format("02.01 15:04"))
	}
	h.sendMessage(chatID, sb.String())
}

func (h *BotHandler) handleStatusCommand(ctx context.Context, chatID int64, id string) {
	job, err := h.imports.GetJob(ctx, id)
	if err != nil {
		h.replyJobError(chatID, id, err)
		return
	}
	h.sendMessage(chatID, formatJob(job))
}

func (h *BotHandler) handleCancelCommand(ctx context.Context, chatID int64, id string) {
	job, err := h.imports.CancelJob(ctx, id)
	if err != nil {
		h.replyJobError(chatID, id, err)
		return
	}
	if job.Status == entity.JobCancelled {
		h.sendMessage(chatID, fmt.Sprintf("🛑 Job %s bekor qilindi.", id))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🛑 Job %s bekor qilinmoqda, joriy qadam tugashini kuting.", id))
}

func (h *BotHandler) handleReportCommand(ctx context.Context, chatID int64, id string) {
	data, name, err := h.imports.ExportReport(ctx, id)
	if err != nil {
		h.replyJobError(chatID, id, err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = fmt.Sprintf("📊 Job %s hisoboti", id)
	if _, err := h.api.Send(doc); err != nil {
		h.log.WithError(err).Error("Hisobot yuborilmadi")
	}
}

func (h *BotHandler) handleStorageCommand(ctx context.Context, chatID int64) {
	size, status, err := h.imports.CheckStorage(ctx)
	if err != nil {
		h.log.WithError(err).Error("Baza hajmi o'lchanmadi")
		h.sendMessage(chatID, "❌ Baza hajmini o'lchab bo'lmadi.")
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("💾 Baza: %s / %s (%.1f%%)\nHolat: %s",
		formatBytes(size.Bytes), formatBytes(size.LimitBytes), size.PercentOfLimit, status))
}

func (h *BotHandler) replyJobError(chatID int64, id string, err error) {
	switch {
	case errors.Is(err, apperror.ErrJobNotFound):
		h.sendMessage(chatID, fmt.Sprintf("Job %s topilmadi.", id))
	case errors.Is(err, apperror.ErrNotCancellable):
		h.sendMessage(chatID, fmt.Sprintf("Job %s allaqachon yakunlangan.", id))
	default:
		h.log.WithError(err).WithField("job_id", id).Error("Job so'rovi bajarilmadi")
		h.sendMessage(chatID, fmt.Sprintf("❌ Xatolik: %v", err))
	}
}

// downloadFile Telegram dan faylni yuklash
func (h *BotHandler) downloadFile(fileID string) ([]byte, error) {
	file, err := h.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Get(file.Link(h.bot.Token))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxFeedSize+1))
}

// sendMessage oddiy xabar yuborish
func (h *BotHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		h.log.WithError(err).Warn("Xabar yuborishda xatolik")
	}
}

func formatJob(job *entity.Job) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Job %s\n", statusIcon(job.Status), job.ID)
	fmt.Fprintf(&sb, "Holat: %s (%d%%)\n", job.Status, job.Progress)
	if job.Stage != "" {
		fmt.Fprintf(&sb, "Bosqich: %s\n", job.Stage)
	}
	if file := job.Metadata["file"]; file != "" {
		fmt.Fprintf(&sb, "Fayl: %s\n", file)
	}
	if job.Storage != nil && job.Storage.Status != entity.StorageOK {
		fmt.Fprintf(&sb, "Baza: %s, tozalash: %t\n", job.Storage.Status, job.Storage.CleanupPerformed)
	}

	if res := job.Result; res != nil {
		sb.WriteString("\n")
		lines := make([]string, 0, len(entity.PersistOrder))
		for _, kind := range entity.PersistOrder {
			ks := res.Kinds[kind]
			if ks == nil || *ks == (entity.KindStats{}) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: +%d ~%d skip %d err %d", kind, ks.Created, ks.Updated, ks.Skipped, ks.Errors))
		}
		for _, line := range lines {
			sb.WriteString("• " + line + "\n")
		}
		if res.Elapsed > 0 {
			fmt.Fprintf(&sb, "Vaqt: %s (%.0f qator/s)\n", res.Elapsed.Round(time.Millisecond), res.RowsPerSec)
		}
	}

	if job.Error != "" {
		fmt.Fprintf(&sb, "\nXato: %s\n", job.Error)
	}
	if job.ErrorsTotal > 0 {
		fmt.Fprintf(&sb, "Xatolar: %d ta (/report %s)\n", job.ErrorsTotal, job.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func statusIcon(s entity.JobStatus) string {
	switch s {
	case entity.JobCompleted:
		return "✅"
	case entity.JobFailed:
		return "❌"
	case entity.JobCancelled:
		return "🛑"
	case entity.JobProcessing:
		return "🔄"
	}
	return "🕓"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", n/1024)
}
