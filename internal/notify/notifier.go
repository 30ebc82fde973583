package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/evetools/oretax/internal/config"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	"github.com/evetools/oretax/internal/providers/discord"
	"github.com/evetools/oretax/internal/providers/email"
	"github.com/evetools/oretax/internal/providers/pdf"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	"go.uber.org/zap"
)

const deliveryTimeout = 15 * time.Second

// Notifier fans an invoice out to the configured channels. Every path is
// best effort: a dead webhook or SMTP outage degrades to a warning and the
// batch carries on.
type Notifier struct {
	log     *zap.Logger
	cfg     config.Config
	discord discord.Provider
	email   email.Provider
	pdf     pdf.Provider
	roster  rosterdomain.Repository
}

type Deps struct {
	Log     *zap.Logger
	Config  config.Config
	Discord discord.Provider
	Email   email.Provider
	PDF     pdf.Provider
	Roster  rosterdomain.Repository
}

func New(d Deps) *Notifier {
	return &Notifier{
		log:     d.Log.Named("notify"),
		cfg:     d.Config,
		discord: d.Discord,
		email:   d.Email,
		pdf:     d.PDF,
		roster:  d.Roster,
	}
}

func (n *Notifier) Announce(ctx context.Context, invoiceCount int) {
	if invoiceCount == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	msg := fmt.Sprintf("Mining tax run complete: %d invoice(s) issued. Check your wallet and pay the collection corp.", invoiceCount)
	if err := n.discord.PostMessage(ctx, msg); err != nil {
		n.log.Warn("announce failed", zap.Error(err))
	}
}

func (n *Notifier) DeliverInvoice(ctx context.Context, inv invoicedomain.Invoice) {
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	payerName := n.payerName(ctx, inv.CharacterID)

	msg := fmt.Sprintf(
		"Invoice %s for %s: %.2f ISK due by %s. Send ISK to the collection corp wallet.",
		inv.ID, payerName, inv.Amount, inv.DueDate.Format("2006-01-02"),
	)
	if err := n.discord.PostMessage(ctx, msg); err != nil {
		n.log.Warn("invoice announcement failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}

	if n.cfg.InvoiceArchiveEmail == "" {
		return
	}

	doc, err := n.pdf.GenerateInvoice(ctx, pdf.InvoiceData{
		InvoiceNumber: inv.ID.String(),
		IssueDate:     inv.CreatedAt.Format("2006-01-02"),
		DueDate:       inv.DueDate.Format("2006-01-02"),
		PayerName:     payerName,
		PayTo:         "Collection corp wallet",
		PayToDetails:  fmt.Sprintf("Corporation %d, division %d", n.cfg.CollectionCorpID, n.cfg.WalletDivision),
		AmountDue:     fmt.Sprintf("%.2f ISK", inv.Amount),
	})
	if err != nil {
		n.log.Warn("invoice pdf generation failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
		return
	}

	var attachments []email.Attachment
	if doc != nil {
		data, err := io.ReadAll(doc)
		if err != nil {
			n.log.Warn("invoice pdf read failed", zap.Error(err))
			return
		}
		attachments = append(attachments, email.Attachment{
			Filename:    fmt.Sprintf("invoice-%s.pdf", inv.ID),
			ContentType: "application/pdf",
			Data:        data,
		})
	}

	subject := fmt.Sprintf("Mining tax invoice %s (%s)", inv.ID, payerName)
	body := fmt.Sprintf("<p>Invoice <b>%s</b> for %s: %.2f ISK, due %s.</p>",
		inv.ID, payerName, inv.Amount, inv.DueDate.Format("2006-01-02"))
	if err := n.email.Send(ctx, []string{n.cfg.InvoiceArchiveEmail}, subject, body, attachments...); err != nil {
		n.log.Warn("invoice archive email failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
	}
}

func (n *Notifier) payerName(ctx context.Context, characterID int64) string {
	c, err := n.roster.Character(ctx, characterID)
	if err != nil || c == nil {
		return fmt.Sprintf("character %d", characterID)
	}
	return c.Name
}
