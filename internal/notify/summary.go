// Package notify renders region summaries and dispatches them to
// subscriber routes over email and chat, recording every attempt in the
// notification log.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Summary bounds: at most maxSummaryEvents items, and the rendered text
// is cut at summaryCutRunes with a see-details pointer once it would
// exceed summaryMaxRunes.
const (
	maxSummaryEvents = 10
	summaryMaxRunes  = 500
	summaryCutRunes  = 450
	titleRunesInLine = 80
)

var statusLabels = map[seminar.Status]string{
	seminar.StatusOpen:      "募集中",
	seminar.StatusPending:   "募集予定",
	seminar.StatusClosed:    "募集締切",
	seminar.StatusExpired:   "募集期限切れ",
	seminar.StatusScheduled: "開催予定",
	seminar.StatusHeld:      "開催終了",
	seminar.StatusCancelled: "中止",
	seminar.StatusOther:     "その他",
}

// StatusLabel renders a status for human-readable messages.
func StatusLabel(s seminar.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Summarize builds one region's human-readable digest covering up to ten
// events, bounded to roughly 500 characters.
func Summarize(events []seminar.Event) string {
	if len(events) == 0 {
		return "本日は重要な海技士セミナー情報はありません。"
	}

	lines := make([]string, 0, maxSummaryEvents)
	for i, ev := range events {
		if i == maxSummaryEvents {
			break
		}
		line := fmt.Sprintf("%d. %s", i+1, truncateRunes(ev.Title, titleRunesInLine))
		if ev.EventDate != nil {
			line += fmt.Sprintf(" [%s]", ev.EventDate.Format("2006-01-02"))
		}
		if ev.Location != "" {
			line += " @" + ev.Location
		}
		if ev.Status != seminar.StatusOpen {
			line += fmt.Sprintf(" (%s)", StatusLabel(ev.Status))
		}
		lines = append(lines, line)
	}

	summary := fmt.Sprintf("重要な海技士セミナー情報 %d件:\n\n%s", len(events), strings.Join(lines, "\n"))
	if len([]rune(summary)) > summaryMaxRunes {
		summary = string([]rune(summary)[:summaryCutRunes]) + "...\n\n詳細は各セミナー情報をご確認ください。"
	}
	return summary
}

// NewImportantMessage renders the per-region notification for the
// new-important mode.
func NewImportantMessage(summary string, events []seminar.Event, now time.Time) seminar.Message {
	var b strings.Builder
	b.WriteString("海技士セミナー情報自動配信システムよりお知らせします。\n\n")
	b.WriteString(summary)
	b.WriteString("\n\n詳細情報:\n")
	for _, ev := range events {
		b.WriteString("\n・" + ev.Title + "\n")
		b.WriteString("  状況: " + StatusLabel(ev.Status) + "\n")
		if ev.EventDate != nil {
			b.WriteString("  開催日: " + ev.EventDate.Format("2006-01-02") + "\n")
		}
		if ev.Location != "" {
			b.WriteString("  場所: " + ev.Location + "\n")
		}
		b.WriteString("  URL: " + ev.SourceURL + "\n")
	}
	b.WriteString("\n\n配信時刻: " + now.Format("2006-01-02 15:04:05"))

	text := b.String()
	return seminar.Message{
		Subject:  fmt.Sprintf("【海技士セミナー情報】%s 重要情報 (新着 %d件)", now.Format("2006-01-02"), len(events)),
		TextBody: text,
		HTMLBody: textToHTML(text),
	}
}

// StatusReportMessage renders the "no new information today" report, with
// up to one recent event included as context.
func StatusReportMessage(recent []seminar.Event, now time.Time) seminar.Message {
	var b strings.Builder
	b.WriteString("本日は新しいセミナー情報の更新がありませんでした。\n")
	b.WriteString("各地方運輸局のサイトを確認しましたが、新規または更新されたセミナー情報は見つかりませんでした。\n")
	if len(recent) > 0 {
		b.WriteString("\n参考: 最近収集されたセミナー情報\n")
		for _, ev := range recent {
			b.WriteString("\n・" + ev.Title + "\n")
			b.WriteString("  状況: " + StatusLabel(ev.Status) + "\n")
			if ev.EventDate != nil {
				b.WriteString("  開催日: " + ev.EventDate.Format("2006-01-02") + "\n")
			}
			b.WriteString("  URL: " + ev.SourceURL + "\n")
		}
	}
	b.WriteString("\n配信時刻: " + now.Format("2006-01-02 15:04:05"))

	text := b.String()
	return seminar.Message{
		Subject:  fmt.Sprintf("【海技士セミナー情報】%s 配信状況", now.Format("2006-01-02")),
		TextBody: text,
		HTMLBody: statusReportHTML(recent, now),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func textToHTML(text string) string {
	escaped := htmlEscape(text)
	return "<html><body><p>" + strings.ReplaceAll(escaped, "\n", "<br>\n") + "</p></body></html>"
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
