// Package captcha detects anti-bot challenges in fetched pages and solves
// them through an external recognition service.
//
// Two challenge kinds are recognized. A Recaptcha challenge embeds the
// Google widget and is answered with a token; a Normal challenge shows an
// image whose text is typed into a form field. Both are posted back
// together with the hidden s and t inputs of the challenge form.
//
// Solving is delegated to a Solver. RuCaptcha implements it on top of the
// rucaptcha.com (2captcha compatible) HTTP API.
package captcha
