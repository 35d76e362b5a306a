package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"rotinas/internal/model"
	"rotinas/internal/repository"
	"rotinas/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageNotes
	stageDue
	stageRecurrence
	stageCustomDays
	stageRoutine
	stageCategory
)

type conversationState struct {
	stage conversationStage
	input service.ReminderInput
}

// Syncer is the cloud sync surface the bot reports on.
type Syncer interface {
	SyncAll(ctx context.Context, userID string) error
	Status() model.SyncStatus
}

// Services groups what the bot drives. Sync may be nil when cloud sync is off.
type Services struct {
	Tasks      *service.TaskService
	Pending    *service.PendingService
	Actions    *service.ActionService
	Categories *service.CategoryService
	Account    *service.AccountService
	Sync       Syncer
}

// Bot is the chat front end: commands, the new reminder dialog and the
// callbacks of notification buttons. Only the configured chat is served.
type Bot struct {
	api    API
	poller *tgbotapi.BotAPI
	chatID int64
	svc    Services
	log    *zap.Logger
	now    func() time.Time

	mu            sync.Mutex
	conversations map[int64]*conversationState
}

// NewAPI authorizes token with Telegram.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return api, nil
}

func New(api *tgbotapi.BotAPI, chatID int64, loc *time.Location, svc Services, log *zap.Logger) *Bot {
	b := newBot(api, chatID, loc, svc, log)
	b.poller = api
	b.log.Info("bot authorized", zap.String("account", api.Self.UserName))
	return b
}

func newBot(api API, chatID int64, loc *time.Location, svc Services, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           api,
		chatID:        chatID,
		svc:           svc,
		log:           log.Named("bot"),
		now:           func() time.Time { return time.Now().In(loc) },
		conversations: make(map[int64]*conversationState),
	}
}

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.poller == nil {
		return errors.New("bot has no update source")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.poller.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.poller.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", zap.Error(err))
			}
		}
	}
	return nil
}

func (b *Bot) allowed(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	if chat.ID != b.chatID {
		b.log.Warn("ignore foreign chat", zap.Int64("chat_id", chat.ID))
		return false
	}
	return true
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !b.allowed(msg.Chat) {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Criação de lembrete cancelada.")
	}

	if msg.IsCommand() {
		b.log.Info("command", zap.String("command", msg.Command()), zap.String("args", msg.CommandArguments()))
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Não entendi a mensagem. Use /newtask para criar um lembrete ou /help para ver os comandos.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewReminder(msg)
	case "tasks":
		return b.sendReminderList(ctx, msg.Chat.ID)
	case "pending":
		return b.sendPendingList(ctx, msg.Chat.ID)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "sync":
		return b.handleSync(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Criação de lembrete cancelada.")
	default:
		return b.sendText(msg.Chat.ID, "Comando não suportado. Veja /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "por aí"
	}
	text := fmt.Sprintf("👋 Olá, %s!\n<b>Eu aviso na hora certa e cobro o que ficou pendente.</b>\n\nVeja os comandos em /help.", escape(name))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Comandos</b>\n" +
		"• /newtask — criar um lembrete passo a passo\n" +
		"• /tasks — lembretes ativos\n" +
		"• /pending — o que já venceu e espera confirmação\n" +
		"• /done &lt;id&gt; — concluir um lembrete\n" +
		"• /delete &lt;id&gt; — apagar um lembrete\n" +
		"• /categories — categorias\n" +
		"• /sync — sincronizar com a nuvem\n" +
		"• /cancel — cancelar o diálogo atual"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelNew:
		return true, b.startNewReminder(msg)
	case menuLabelList:
		return true, b.sendReminderList(ctx, msg.Chat.ID)
	case menuLabelPending:
		return true, b.sendPendingList(ctx, msg.Chat.ID)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) startNewReminder(msg *tgbotapi.Message) error {
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Novo lembrete.\n<b>Passo 1:</b> qual o título?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "O título não pode ficar vazio.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageNotes
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Alguma observação? (ou «Pular»)", skipKeyboard())
	case stageNotes:
		if !isSkipInput(text) {
			state.input.Notes = text
		}
		state.stage = stageDue
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Quando? Use <code>25/12/2025 09:30</code> ou só <code>09:30</code>.", cancelKeyboard())
	case stageDue:
		due, err := parseDue(text, b.now())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Não reconheci a data. Exemplo: <code>25/12/2025 09:30</code>.", cancelKeyboard())
		}
		state.input.DueAt = due
		state.stage = stageRecurrence
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔁 Repetir?", recurrenceKeyboard())
	case stageRecurrence:
		typ, ok := parseRecurrence(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Escolha uma das opções.", recurrenceKeyboard())
		}
		state.input.Type = typ
		switch typ {
		case model.RecurrenceNone:
			state.stage = stageCategory
			return b.askCategory(ctx, msg.Chat.ID)
		case model.RecurrenceCustom:
			state.stage = stageCustomDays
			return b.sendWithReplyMarkup(msg.Chat.ID, "📆 Em quais dias? Ex.: <code>seg, qua, sex</code>", cancelKeyboard())
		default:
			state.stage = stageRoutine
			return b.sendWithReplyMarkup(msg.Chat.ID, "🗓 É uma rotina com tarefas?", yesNoKeyboard())
		}
	case stageCustomDays:
		days, err := parseWeekdays(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Não reconheci os dias. Ex.: <code>seg, qua, sex</code>", cancelKeyboard())
		}
		state.input.CustomDays = days
		state.stage = stageRoutine
		return b.sendWithReplyMarkup(msg.Chat.ID, "🗓 É uma rotina com tarefas?", yesNoKeyboard())
	case stageRoutine:
		switch {
		case isYesInput(text):
			state.input.IsRoutine = true
		case isNoInput(text):
			state.input.IsRoutine = false
		default:
			return b.sendWithReplyMarkup(msg.Chat.ID, "Responda «Sim» ou «Não».", yesNoKeyboard())
		}
		state.stage = stageCategory
		return b.askCategory(ctx, msg.Chat.ID)
	case stageCategory:
		if !isSkipInput(text) {
			state.input.Category = text
		}
		input := state.input
		b.clearConversation(msg.From.ID)
		return b.finishReminder(ctx, msg.Chat.ID, input)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Diálogo reiniciado. Tente de novo com /newtask.")
	}
}

func (b *Bot) askCategory(ctx context.Context, chatID int64) error {
	categories, err := b.svc.Categories.List(ctx)
	if err != nil {
		b.log.Warn("list categories", zap.Error(err))
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return b.sendWithReplyMarkup(chatID, "🏷 Categoria? Escolha, escreva uma nova ou «Pular».", categoryKeyboard(names))
}

func (b *Bot) finishReminder(ctx context.Context, chatID int64, input service.ReminderInput) error {
	r, err := b.svc.Tasks.Create(ctx, input)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Não foi possível salvar: %s", escape(err.Error())))
	}
	b.log.Info("reminder created", zap.Uint("reminder_id", r.ID), zap.String("type", string(r.Type)))

	var summary strings.Builder
	summary.WriteString("✅ <b>Lembrete salvo</b>\n")
	summary.WriteString(formatReminder(*r, b.now()))
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) sendReminderList(ctx context.Context, chatID int64) error {
	reminders, err := b.svc.Tasks.ListActive(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Não foi possível carregar os lembretes: %s", escape(err.Error())))
	}
	if len(reminders) == 0 {
		return b.sendText(chatID, "Nenhum lembrete ativo. Crie um com /newtask.")
	}

	categories, err := b.svc.Categories.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[uint]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	groups := make(map[string][]model.Reminder)
	var order []string
	for _, r := range reminders {
		name := noCategory
		if r.CategoryID != nil {
			if n, ok := names[*r.CategoryID]; ok {
				name = n
			}
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], r)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i] == noCategory {
			return false
		}
		if order[j] == noCategory {
			return true
		}
		return order[i] < order[j]
	})

	now := b.now()
	var text strings.Builder
	text.WriteString("📋 <b>Lembretes ativos</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, name := range order {
		text.WriteString(fmt.Sprintf("<b>%s</b>\n", categoryLabel(name)))
		for _, r := range groups[name] {
			text.WriteString(formatReminder(r, now))
			complete := service.Action{Kind: service.ActionComplete, ReminderID: r.ID}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", r.ID, shortTitle(r.Title, 24)), complete.Data()),
			))
		}
		text.WriteByte('\n')
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(text.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) sendPendingList(ctx context.Context, chatID int64) error {
	pending, err := b.svc.Pending.Pending(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Não foi possível carregar as pendências: %s", escape(err.Error())))
	}
	if len(pending) == 0 {
		return b.sendText(chatID, "🎉 Nada pendente.")
	}

	now := b.now()
	var text strings.Builder
	text.WriteString(fmt.Sprintf("🕒 <b>Pendentes (%d)</b>\n\n", len(pending)))
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, r := range pending {
		text.WriteString(formatReminder(r, now))
		complete := service.Action{Kind: service.ActionComplete, ReminderID: r.ID}
		snooze := service.Action{Kind: service.ActionSnooze, ReminderID: r.ID, Minutes: 60}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d", r.ID), complete.Data()),
			tgbotapi.NewInlineKeyboardButtonData("⏰ 1 h", snooze.Data()),
		))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(text.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseReminderID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Informe o número do lembrete: /done 12")
	}
	r, err := b.svc.Tasks.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return b.sendText(msg.Chat.ID, "Lembrete não encontrado.")
		}
		return err
	}
	if err := b.svc.Actions.Complete(ctx, id); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Erro: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ «%s» concluído.", escape(normalizeTitle(r.Title))))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	id, err := parseReminderID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Informe o número do lembrete: /delete 12")
	}
	r, err := b.svc.Tasks.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return b.sendText(msg.Chat.ID, "Lembrete não encontrado.")
		}
		return err
	}
	if err := b.svc.Tasks.Delete(ctx, id); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Não foi possível apagar: %s", escape(err.Error())))
	}
	b.log.Info("reminder deleted", zap.Uint("reminder_id", id))
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 «%s» apagado.", escape(normalizeTitle(r.Title))))
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	categories, err := b.svc.Categories.List(ctx)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Não foi possível carregar as categorias: %s", escape(err.Error())))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "Nenhuma categoria ainda. Elas surgem ao criar lembretes.")
	}
	var text strings.Builder
	text.WriteString("📂 <b>Categorias</b>\n")
	for _, c := range categories {
		text.WriteString(fmt.Sprintf("• %s\n", categoryLabel(c.Name)))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(text.String()))
}

func (b *Bot) handleSync(ctx context.Context, msg *tgbotapi.Message) error {
	if b.svc.Sync == nil || b.svc.Account == nil {
		return b.sendText(msg.Chat.ID, "Sincronização desativada.")
	}
	account, err := b.svc.Account.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if account.UID == model.LocalUserID {
		return b.sendText(msg.Chat.ID, "Nenhuma conta conectada. Use <code>rotinas signin</code>.")
	}
	if err := b.svc.Sync.SyncAll(ctx, account.UID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ Falha na sincronização: %s", escape(err.Error())))
	}
	status := b.svc.Sync.Status()
	return b.sendText(msg.Chat.ID, fmt.Sprintf("☁️ Sincronizado às %s.", status.LastSync.In(b.now().Location()).Format(timeLayout)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || !b.allowed(cb.Message.Chat) {
		return nil
	}

	answer := ""
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, answer)); err != nil {
			b.log.Warn("callback ack", zap.Error(err))
		}
	}()

	action, err := service.ParseAction(cb.Data)
	if err != nil {
		b.log.Warn("unknown callback", zap.String("data", cb.Data), zap.Error(err))
		return nil
	}
	b.log.Info("callback", zap.String("action", string(action.Kind)), zap.Uint("reminder_id", action.ReminderID))

	if action.Kind == service.ActionPending {
		return b.sendPendingList(ctx, cb.Message.Chat.ID)
	}
	if err := b.svc.Actions.Dispatch(ctx, action); err != nil {
		answer = "Erro ao aplicar a ação"
		return err
	}
	answer = callbackAnswer(action)
	return nil
}

func callbackAnswer(a service.Action) string {
	switch a.Kind {
	case service.ActionSnooze:
		return fmt.Sprintf("Adiado por %s", formatMinutes(a.Minutes))
	case service.ActionComplete:
		return "Concluído"
	case service.ActionSkip:
		return "Pulado para a próxima vez"
	case service.ActionCheckup:
		return "Vou perguntar de novo mais tarde"
	case service.ActionDoing:
		return "Volto em 30 min"
	default:
		return ""
	}
}

func formatMinutes(m int) string {
	switch {
	case m%(24*60) == 0:
		days := m / (24 * 60)
		if days == 1 {
			return "1 dia"
		}
		return fmt.Sprintf("%d dias", days)
	case m%60 == 0:
		return fmt.Sprintf("%d h", m/60)
	default:
		return fmt.Sprintf("%d min", m)
	}
}

func parseReminderID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid reminder id %q", raw)
	}
	return uint(value), nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.conversations[userID]
	return ok && state.stage != stageNone
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
