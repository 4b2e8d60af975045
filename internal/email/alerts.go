package email

import (
	"context"
	"fmt"

	"afropedia/api/internal/events"
)

type Mailer interface {
	SendHTMLEmail(to []string, subject, htmlBody string) error
}

type Fact struct {
	Label string
	Value string
}

type AlertData struct {
	AppName  string
	Headline string
	Facts    []Fact
	Reason   string
}

// Alerter emails moderators about flags, rejections and escalations.
type Alerter struct {
	mailer     Mailer
	recipients []string
}

func NewAlerter(mailer Mailer, recipients []string) *Alerter {
	return &Alerter{mailer: mailer, recipients: recipients}
}

func (a *Alerter) Name() string { return "smtp" }

func (a *Alerter) Publish(ctx context.Context, event events.Event) error {
	data, ok := alertFor(event)
	if !ok || len(a.recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := renderAlert(data)
	if err != nil {
		return fmt.Errorf("render alert: %w", err)
	}
	if err := a.mailer.SendHTMLEmail(a.recipients, "[Afropedia] "+data.Headline, html); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func alertFor(event events.Event) (AlertData, bool) {
	data := AlertData{AppName: "Afropedia"}
	reason, _ := event.Payload["reason"].(string)
	data.Reason = reason

	switch event.Type {
	case events.FlagRaised:
		data.Headline = "Content flagged"
		data.Facts = []Fact{
			{Label: "Flag", Value: payloadString(event, "flagId")},
			{Label: "Type", Value: payloadString(event, "flagType")},
			{Label: "Content", Value: payloadString(event, "contentType") + " " + payloadString(event, "contentId")},
			{Label: "Flagged by", Value: event.ActorID},
		}
	case events.RevisionRejected:
		data.Headline = fmt.Sprintf("Revision %d rejected", event.RevisionID)
		data.Facts = []Fact{
			{Label: "Document", Value: fmt.Sprint(event.DocumentID)},
			{Label: "Decided by", Value: event.ActorID},
		}
	case events.ReviewEscalated:
		data.Headline = fmt.Sprintf("Review escalated on revision %d", event.RevisionID)
		data.Facts = []Fact{
			{Label: "Review", Value: payloadString(event, "reviewId")},
			{Label: "Escalated by", Value: event.ActorID},
		}
	default:
		return AlertData{}, false
	}
	return data, true
}

func payloadString(event events.Event, key string) string {
	value, ok := event.Payload[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
