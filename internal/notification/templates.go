package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	otpSubject          = "Your GoMate Verification Code"
	verificationSubject = "Verify your GoMate email address"
)

var otpBody = template.Must(template.New("otp").Parse(`Hi {{.Name}}!

Your verification code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.
For security, don't share this code with anyone.

If you didn't request this code, please ignore this email.

Best regards,
The GoMate Team`))

var verificationBody = template.Must(template.New("verification").Parse(`Hi {{.Name}}!

Please confirm your email address by opening the link below:

{{.Link}}

The link expires in {{.Hours}} hours.

Best regards,
The GoMate Team`))

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
