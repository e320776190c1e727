// Package templates renders the HTML bodies for transactional emails.
package templates

import (
	"fmt"
	"html"
)

// RenderVerificationEmail generates branded HTML for the signup verification
// email: the 6-digit code plus a one-click verify link. All inputs are
// HTML-escaped.
func RenderVerificationEmail(name, code, link string) string {
	safeName := html.EscapeString(name)
	if safeName == "" {
		safeName = "there"
	}
	safeCode := html.EscapeString(code)
	safeLink := html.EscapeString(link)

	linkBlock := ""
	if safeLink != "" {
		linkBlock = fmt.Sprintf(`<p style="text-align: center;"><a class="button" href="%s">Verify my email</a></p>`, safeLink)
	}

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Verify your email</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #2563eb 0%%, #7c3aed 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .code { font-size: 32px; font-weight: 700; letter-spacing: 8px; text-align: center; color: #fff; background-color: #1e1e2f; padding: 20px; border-radius: 8px; }
    .button { display: inline-block; padding: 12px 28px; background: #2563eb; color: #fff; border-radius: 6px; text-decoration: none; font-weight: 600; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
    .footer a { color: #2563eb; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Verify your email</h1>
    </div>
    <div class="content">
      <p>Hi %s,</p>
      <p>Welcome to LinguaCall. Enter this code to verify your email address:</p>
      <div class="code">%s</div>
      %s
      <p>This code will expire in 24 hours. If you did not create a LinguaCall account, you can safely ignore this email.</p>
    </div>
    <div class="footer">
      <p>&copy; LinguaCall | <a href="https://www.linguacall.app">linguacall.app</a></p>
      <p><a href="https://www.linguacall.app/support">Contact Support</a></p>
    </div>
  </div>
</body>
</html>`, safeName, safeCode, linkBlock)
}
