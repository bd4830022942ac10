package mailer

import "go.uber.org/zap"

// LogClient renders mail and logs it instead of sending. It is used when no
// SMTP server is configured.
type LogClient struct {
	logger *zap.SugaredLogger
}

func NewLogClient(logger *zap.SugaredLogger) *LogClient {
	return &LogClient{logger: logger}
}

func (c *LogClient) Send(templateFile, username, email string, data any) (int, error) {
	subject, _, err := Render(templateFile, data)
	if err != nil {
		return -1, err
	}
	c.logger.Infow("email not sent, smtp disabled", "to", email, "name", username, "subject", subject)
	return 200, nil
}
