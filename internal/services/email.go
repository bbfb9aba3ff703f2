package services

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"

	"tova-go/internal/metrics"
	"tova-go/internal/models"
)

var resultsEmail = template.Must(template.New("results").Parse(`<h2>Hi {{.Name}},</h2>
<p>Your attention test from {{.Date}} has been scored.</p>
<table>
  <tr><td>Attentiveness</td><td>{{.Attentiveness}}%</td><td>{{.AttentivenessBand}}</td></tr>
  <tr><td>Impulse control</td><td>{{.ImpulseControl}}%</td><td>{{.ImpulseControlBand}}</td></tr>
  <tr><td>Consistency</td><td>{{.Consistency}}%</td><td>{{.ConsistencyBand}}</td></tr>
</table>
<p>Omission errors: {{.OmissionErrors}}<br>
Commission errors: {{.CommissionErrors}}<br>
Mean reaction time: {{printf "%.0f" .MeanReactionTimeMs}} ms<br>
Reaction time variability: {{printf "%.0f" .VariabilityMs}} ms<br>
Test duration: {{.Duration}}</p>
{{if .Terminated}}<p>The test was ended early, so these figures cover only part of it.</p>{{end}}`))

type resultsEmailData struct {
	Name               string
	Date               string
	Attentiveness      int
	ImpulseControl     int
	Consistency        int
	AttentivenessBand  string
	ImpulseControlBand string
	ConsistencyBand    string
	OmissionErrors     int
	CommissionErrors   int
	MeanReactionTimeMs float64
	VariabilityMs      float64
	Duration           string
	Terminated         bool
}

// EmailService is a placeholder for a real email sending service. It
// renders the message and writes it to out instead of sending it.
type EmailService struct {
	log *zap.Logger
	out io.Writer
}

func NewEmailService(log *zap.Logger, out io.Writer) *EmailService {
	return &EmailService{log: log, out: out}
}

// RenderResultsEmail builds the subject and HTML body of a results email.
func RenderResultsEmail(r models.TestResult) (subject, body string, err error) {
	data := resultsEmailData{
		Name:               r.ParticipantName,
		Date:               r.TestDate.Format("2 January 2006"),
		Attentiveness:      r.Attentiveness,
		ImpulseControl:     r.ImpulseControl,
		Consistency:        r.Consistency,
		AttentivenessBand:  metrics.Band(r.Attentiveness),
		ImpulseControlBand: metrics.Band(r.ImpulseControl),
		ConsistencyBand:    metrics.Band(r.Consistency),
		OmissionErrors:     r.OmissionErrors,
		CommissionErrors:   r.CommissionErrors,
		MeanReactionTimeMs: r.MeanReactionTimeMs,
		VariabilityMs:      r.ReactionTimeVariabilityMs,
		Duration:           formatDuration(r.DurationMs),
		Terminated:         r.Status == models.ResultStatusTerminated,
	}
	var buf bytes.Buffer
	if err := resultsEmail.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("rendering results email: %w", err)
	}
	return "Your attention test results", buf.String(), nil
}

// SendResultsEmail simulates sending the results email.
func (s *EmailService) SendResultsEmail(r models.TestResult) error {
	subject, body, err := RenderResultsEmail(r)
	if err != nil {
		return err
	}
	s.log.Info("Sending results email",
		zap.String("to", r.Email),
		zap.String("payment_code", r.PaymentCode),
	)
	if s.out != nil {
		fmt.Fprintf(s.out, "--- SIMULATING EMAIL ---\nTo: %s\nSubject: %s\n\n%s\n\n", r.Email, subject, body)
	}
	return nil
}

func formatDuration(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
