package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hi {{if .BuyerName}}{{.BuyerName}}{{else}}there{{end}},</p>
<p>Your payment of <strong>{{.Amount.StringFixed 2}} {{.Currency}}</strong> was successful.</p>
<table>
<tr><td>Order</td><td>{{.OrderReferenceID}}</td></tr>
{{if .PaymentID}}<tr><td>Payment</td><td>{{.PaymentID}}</td></tr>{{end}}
{{if .ProductID}}<tr><td>Plan</td><td>{{.ProductID}}</td></tr>{{end}}
<tr><td>Date</td><td>{{.CompletedAt.Format "2006-01-02 15:04 MST"}}</td></tr>
</table>
</body>
</html>`))

type sender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

type EmailService struct {
	emails   sender
	from     string
	fromName string
	logger   *zap.Logger
}

func NewEmailService(cfg config.EmailConfig, logger *zap.Logger) *EmailService {
	client := resend.NewClient(cfg.APIKey)
	return newEmailService(client.Emails, cfg, logger)
}

func newEmailService(emails sender, cfg config.EmailConfig, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{
		emails:   emails,
		from:     cfg.From,
		fromName: cfg.FromName,
		logger:   logger,
	}
}

func (s *EmailService) SendReceipt(receipt models.Receipt) error {
	if receipt.BuyerEmail == "" {
		return fmt.Errorf("receipt %s has no buyer email", receipt.AttemptID)
	}

	html, err := renderReceipt(receipt)
	if err != nil {
		s.logger.Error("Error rendering receipt", zap.String("attempt_id", receipt.AttemptID), zap.Error(err))
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.fromName + " <" + s.from + ">",
		To:      []string{receipt.BuyerEmail},
		Subject: "Your payment receipt - " + receipt.OrderReferenceID,
		Html:    html,
	}

	resp, err := s.emails.Send(params)
	if err != nil {
		s.logger.Error("Failed to send receipt",
			zap.String("attempt_id", receipt.AttemptID),
			zap.String("to", receipt.BuyerEmail),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Receipt sent",
		zap.String("attempt_id", receipt.AttemptID),
		zap.String("email_id", resp.Id),
	)
	return nil
}

func renderReceipt(receipt models.Receipt) (string, error) {
	var body bytes.Buffer
	if err := receiptTemplate.Execute(&body, receipt); err != nil {
		return "", err
	}
	return body.String(), nil
}
