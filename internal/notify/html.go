package notify

import (
	"html/template"
	"strings"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// statusReportTmpl is the styled body for the "no new information" mail.
var statusReportTmpl = template.Must(template.New("status-report").Parse(`<html>
<head><meta charset="UTF-8"><title>海技士セミナー情報 - {{.Date}}</title></head>
<body style="font-family:'Yu Gothic',Meiryo,sans-serif;background-color:#f5f7fa;padding:20px;">
  <div style="max-width:800px;margin:0 auto;background-color:#ffffff;border-radius:10px;">
    <div style="background-color:#667eea;color:#ffffff;padding:24px;text-align:center;border-radius:10px 10px 0 0;">
      <h1 style="margin:0;font-weight:300;">海技士セミナー情報</h1>
      <p style="margin:8px 0 0;">{{.Date}} 配信</p>
    </div>
    <div style="padding:24px;">
      <div style="background-color:#f8f9ff;border-left:4px solid #667eea;padding:16px;">
        <p><strong>本日は新しいセミナー情報の更新がありませんでした。</strong></p>
        <p>各地方運輸局のサイトを確認しましたが、新規または更新されたセミナー情報は見つかりませんでした。</p>
      </div>
{{- if .Recent}}
      <h2 style="color:#4a5568;border-bottom:2px solid #e2e8f0;padding-bottom:8px;">最近のセミナー情報</h2>
{{- range .Recent}}
      <div style="background-color:#fafbfc;border:1px solid #e1e8ed;border-radius:8px;padding:16px;margin:12px 0;">
        <div style="font-size:17px;font-weight:600;">{{.Title}}</div>
        <div>開催日: {{.Date}}</div>
        <div>場所: {{.Location}}</div>
        <div>状況: {{.Status}}</div>
        <div><a href="{{.URL}}">詳細を見る</a></div>
      </div>
{{- end}}
{{- end}}
    </div>
    <div style="background-color:#f7fafc;padding:16px;text-align:center;color:#718096;border-radius:0 0 10px 10px;">
      <p>このメールは海技士セミナー情報自動配信システムより送信されました。</p>
      <p>配信時刻: {{.SentAt}}</p>
    </div>
  </div>
</body>
</html>`))

type statusReportData struct {
	Date   string
	SentAt string
	Recent []statusReportEvent
}

type statusReportEvent struct {
	Title    string
	Date     string
	Location string
	Status   string
	URL      string
}

func statusReportHTML(recent []seminar.Event, now time.Time) string {
	data := statusReportData{
		Date:   now.Format("2006年01月02日"),
		SentAt: now.Format("2006-01-02 15:04:05"),
	}
	for _, ev := range recent {
		item := statusReportEvent{
			Title:    ev.Title,
			Date:     "未定",
			Location: ev.Location,
			Status:   StatusLabel(ev.Status),
			URL:      ev.SourceURL,
		}
		if ev.EventDate != nil {
			item.Date = ev.EventDate.Format("2006-01-02")
		}
		if item.Location == "" {
			item.Location = "未定"
		}
		data.Recent = append(data.Recent, item)
	}

	var b strings.Builder
	if err := statusReportTmpl.Execute(&b, data); err != nil {
		// The template is static; execution can only fail on a writer
		// error, which strings.Builder never returns.
		return textToHTML("本日は新しいセミナー情報の更新がありませんでした。")
	}
	return b.String()
}
