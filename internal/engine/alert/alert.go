package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"otpreport/internal/engine/otpstats"
	"otpreport/internal/platform/mailer"
	"otpreport/internal/platform/sheets"
)

const (
	DateColumn       = "Date"
	PercentageColumn = "Unverified %"

	Subject = "🚨 Alert: High Unverified Percentage in OTP Verification Logs"
)

var ErrMissingColumn = errors.New("required column missing from sheet header")

// Breach is a day whose unverified percentage exceeded the threshold.
type Breach struct {
	Date       string
	Percentage string
	Value      float64
}

// FindBreaches scans rows (header first) for the given dates and returns
// those whose percentage is strictly greater than threshold. Rows with an
// unreadable percentage are logged and skipped.
func FindBreaches(rows [][]string, dates []string, threshold float64) ([]Breach, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet is empty", ErrMissingColumn)
	}

	dateIdx, pctIdx := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case DateColumn:
			if dateIdx < 0 {
				dateIdx = i
			}
		case PercentageColumn:
			if pctIdx < 0 {
				pctIdx = i
			}
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, DateColumn)
	}
	if pctIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, PercentageColumn)
	}

	wanted := make(map[string]bool, len(dates))
	for _, d := range dates {
		wanted[d] = true
	}

	var breaches []Breach
	for _, row := range rows[1:] {
		if dateIdx >= len(row) || !wanted[row[dateIdx]] {
			continue
		}
		if pctIdx >= len(row) {
			log.Warn().Strs("row", row).Msg("skipping row without unverified percentage")
			continue
		}

		raw := row[pctIdx]
		value, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw), "%"), 64)
		if err != nil {
			log.Warn().Strs("row", row).Msg("skipping invalid row")
			continue
		}
		log.Info().Str("date", row[dateIdx]).Float64("unverified_pct", value).Msg("checked unverified percentage")

		if value > threshold {
			breaches = append(breaches, Breach{Date: row[dateIdx], Percentage: strings.TrimSpace(raw), Value: value})
		}
	}
	return breaches, nil
}

// ComposeBody renders the alert as HTML from a Markdown template.
func ComposeBody(breaches []Breach, sheetLink string) (string, error) {
	var md strings.Builder
	md.WriteString("Dear Team,\n\n")
	md.WriteString("This is an **automated alert** regarding high unverified percentages in OTP verification logs.\n\n")
	md.WriteString("The following records have exceeded the acceptable threshold:\n\n")
	for _, b := range breaches {
		fmt.Fprintf(&md, "- **Date:** %s, **Unverified %%:** %s%%\n", b.Date, strings.TrimSuffix(b.Percentage, "%"))
	}
	md.WriteString("\nPlease investigate the issue and take necessary actions.\n\n")
	if sheetLink != "" {
		fmt.Fprintf(&md, "You can review the details in the **[Google Sheet](%s)**.\n\n", sheetLink)
	}
	md.WriteString("Best regards,  \nAutomated Monitoring System\n\n")
	md.WriteString("**Please do not reply to this email. This is an automated notification.**\n")

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return "", fmt.Errorf("render alert body: %w", err)
	}
	return buf.String(), nil
}

type Notifier struct {
	sheet     sheets.Spreadsheet
	sender    mailer.Sender
	threshold float64
	recipient string
	sheetLink string
}

func NewNotifier(sheet sheets.Spreadsheet, sender mailer.Sender, threshold float64, recipient, sheetLink string) *Notifier {
	return &Notifier{
		sheet:     sheet,
		sender:    sender,
		threshold: threshold,
		recipient: recipient,
		sheetLink: sheetLink,
	}
}

// Run checks today and yesterday in the current month's tab and mails the
// recipient when either breaches the threshold. It returns the breaches that
// were reported.
func (n *Notifier) Run(ctx context.Context, now time.Time) ([]Breach, error) {
	today := otpstats.StartOfDay(now)
	dates := []string{
		today.Format(otpstats.DateLayout),
		today.AddDate(0, 0, -1).Format(otpstats.DateLayout),
	}
	tab := otpstats.MonthTab(today)

	rows, err := n.sheet.ReadTab(ctx, tab)
	if err != nil {
		return nil, fmt.Errorf("read tab %s: %w", tab, err)
	}
	log.Info().Str("tab", tab).Strs("dates", dates).Msg("checking unverified percentage")

	breaches, err := FindBreaches(rows, dates, n.threshold)
	if err != nil {
		return nil, fmt.Errorf("tab %s: %w", tab, err)
	}
	if len(breaches) == 0 {
		log.Info().Msg("no alert needed, unverified percentage is within limits")
		return nil, nil
	}

	body, err := ComposeBody(breaches, n.sheetLink)
	if err != nil {
		return nil, err
	}

	msg := mailer.Message{To: n.recipient, Subject: Subject, HTMLBody: body}
	if err := n.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send alert email: %w", err)
	}
	log.Info().Str("recipient", n.recipient).Int("breaches", len(breaches)).Msg("alert email sent")
	return breaches, nil
}
