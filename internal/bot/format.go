package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rotinas/internal/model"
)

const (
	btnSkip          = "⏭️ Pular"
	btnYes           = "Sim"
	btnNo            = "Não"
	btnCancelDialog  = "⏪ Cancelar"
	noCategory       = "Sem categoria"
	iconDefault      = "🟢"
	iconDue          = "⏳"
	iconOverdue      = "⚠️"
	iconRecurring    = "♻️"
	iconRoutine      = "🗓"
	menuLabelNew     = "➕ Novo lembrete"
	menuLabelList    = "📋 Lembretes"
	menuLabelPending = "🕒 Pendentes"
	menuLabelHelp    = "ℹ️ Ajuda"

	dateTimeLayout = "02/01/2006 15:04"
	isoLayout      = "2006-01-02 15:04"
	timeLayout     = "15:04"
)

var recurrenceLabels = []struct {
	label string
	typ   model.RecurrenceType
}{
	{"Nenhuma", model.RecurrenceNone},
	{"Diária", model.RecurrenceDaily},
	{"Semanal", model.RecurrenceWeekly},
	{"Dias úteis", model.RecurrenceWeekdays},
	{"Quinzenal", model.RecurrenceBiweekly},
	{"Mensal", model.RecurrenceMonthly},
	{"Personalizada", model.RecurrenceCustom},
}

var weekdayNames = map[string]time.Weekday{
	"dom": time.Sunday,
	"seg": time.Monday,
	"ter": time.Tuesday,
	"qua": time.Wednesday,
	"qui": time.Thursday,
	"sex": time.Friday,
	"sab": time.Saturday,
	"sáb": time.Saturday,
}

// parseDue accepts "dd/mm/aaaa hh:mm", "aaaa-mm-dd hh:mm" or just "hh:mm",
// which means the next time the clock shows it.
func parseDue(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	loc := now.Location()
	for _, layout := range []string{dateTimeLayout, isoLayout} {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}

	clock, err := time.ParseInLocation(timeLayout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("data inválida %q", text)
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !due.After(now) {
		due = due.AddDate(0, 0, 1)
	}
	return due, nil
}

func parseRecurrence(text string) (model.RecurrenceType, bool) {
	text = strings.TrimSpace(text)
	for _, r := range recurrenceLabels {
		if strings.EqualFold(text, r.label) {
			return r.typ, true
		}
	}
	return model.ParseRecurrenceType(text)
}

func recurrenceLabel(typ model.RecurrenceType) string {
	for _, r := range recurrenceLabels {
		if r.typ == typ {
			return r.label
		}
	}
	return string(typ)
}

// parseWeekdays reads a comma or space separated list of day abbreviations
// ("seg, qua, sex") or numbers from 0 (Sunday) to 6.
func parseWeekdays(text string) ([]time.Weekday, error) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, f := range fields {
		day, ok := weekdayNames[f]
		if !ok {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("dia inválido %q", f)
			}
			day = time.Weekday(n)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("nenhum dia informado")
	}
	return days, nil
}

func isYesInput(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "sim", "s", "yes", "y":
		return true
	}
	return false
}

func isNoInput(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "não", "nao", "n", "no", "-":
		return true
	}
	return false
}

func isSkipInput(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == strings.ToLower(btnSkip) || t == "pular" || t == "-"
}

func isCancelDialogInput(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), btnCancelDialog)
}

func formatReminder(r model.Reminder, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	switch {
	case r.IsRoutine:
		icon = iconRoutine
	case r.IsRecurring():
		icon = iconRecurring
	case now.After(r.DueAt):
		icon = iconOverdue
	case r.DueAt.Sub(now) <= 24*time.Hour:
		icon = iconDue
	}

	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, r.ID, escape(normalizeTitle(r.Title))))
	trigger := r.NextTrigger(now).In(now.Location())
	b.WriteString(fmt.Sprintf("   ⏰ %s", trigger.Format(dateTimeLayout)))
	if r.IsRecurring() {
		b.WriteString(fmt.Sprintf(" · %s", strings.ToLower(recurrenceLabel(r.Type))))
	}
	if r.SnoozedUntil != nil && r.SnoozedUntil.After(now) {
		b.WriteString(" · adiado")
	}
	b.WriteByte('\n')
	if notes := strings.TrimSpace(r.Notes); notes != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(notes)))
	}
	return b.String()
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func categoryLabel(name string) string {
	base := strings.TrimSpace(name)
	var icon string
	switch strings.ToLower(base) {
	case "estudos":
		icon = "🎓"
	case "trabalho":
		icon = "💼"
	case "compras":
		icon = "🛒"
	case "saúde", "saude":
		icon = "🩺"
	case "casa":
		icon = "🏠"
	case strings.ToLower(noCategory):
		icon = "📁"
	default:
		icon = "🏷️"
	}
	return fmt.Sprintf("%s %s", icon, escape(normalizeTitle(base)))
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNew),
			tgbotapi.NewKeyboardButton(menuLabelList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelPending),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnYes),
			tgbotapi.NewKeyboardButton(btnNo),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func recurrenceKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, r := range recurrenceLabels {
		row = append(row, tgbotapi.NewKeyboardButton(r.label))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func categoryKeyboard(names []string) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{}
	var row []tgbotapi.KeyboardButton
	for _, name := range names {
		row = append(row, tgbotapi.NewKeyboardButton(name))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnSkip),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
