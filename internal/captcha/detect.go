package captcha

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Kind is the type of a challenge.
type Kind int

const (
	// KindRecaptcha is a Google reCAPTCHA widget answered with a token.
	KindRecaptcha Kind = iota + 1
	// KindNormal is an image challenge answered with its text.
	KindNormal
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindRecaptcha:
		return "recaptcha"
	case KindNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// RecaptchaField is the form field carrying a reCAPTCHA token.
const RecaptchaField = "g-recaptcha-response"

// Challenge describes one challenge found in a response.
// It is only valid for the response it was detected in.
type Challenge struct {
	Kind Kind

	// SiteKey is the data-sitekey of the widget, empty when the page omits it.
	SiteKey string

	// PageURL is the URL the challenge was served for.
	PageURL string

	// ImageURL is the absolute URL of the picture of a Normal challenge.
	ImageURL string

	// Image holds the picture bytes once downloaded by the caller.
	Image []byte

	// S and T are the hidden form values that must be posted back.
	S string
	T string

	// AnswerField is the form field the solution is posted in.
	AnswerField string
}

// Form returns the form values that answer the challenge with solution.
func (c *Challenge) Form(solution string) url.Values {
	return url.Values{
		"s":           {c.S},
		"t":           {c.T},
		c.AnswerField: {solution},
	}
}

// scan collects the challenge markers of a page in a single walk.
type scan struct {
	hasS, hasT   bool
	s, t         string
	recaptcha    bool
	siteKey      string
	textInput    string
	formImage    string
	captchaImage string
	inForm       int
}

// Detect reports the challenge embedded in body, if any.
// A page is challenged when it carries inputs named s and t. The page is a
// Recaptcha challenge when it contains the g-recaptcha widget or the
// recaptcha script, otherwise it is a Normal image challenge.
func Detect(body []byte, pageURL string) (*Challenge, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	sc := &scan{}
	sc.walk(doc)

	if !sc.hasS || !sc.hasT {
		return nil, false
	}

	c := &Challenge{
		PageURL: pageURL,
		SiteKey: sc.siteKey,
		S:       sc.s,
		T:       sc.t,
	}
	if sc.recaptcha {
		c.Kind = KindRecaptcha
		c.AnswerField = RecaptchaField
		return c, true
	}

	c.Kind = KindNormal
	c.AnswerField = sc.textInput
	if c.AnswerField == "" {
		c.AnswerField = RecaptchaField
	}
	img := sc.formImage
	if img == "" {
		img = sc.captchaImage
	}
	c.ImageURL = resolve(pageURL, img)
	return c, true
}

func (sc *scan) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		sc.element(n)
		if n.Data == "form" {
			sc.inForm++
			defer func() { sc.inForm-- }()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sc.walk(c)
	}
}

func (sc *scan) element(n *html.Node) {
	if key := getAttr(n, "data-sitekey"); key != "" && sc.siteKey == "" {
		sc.siteKey = key
	}
	if hasClass(n, "g-recaptcha") {
		sc.recaptcha = true
	}

	switch n.Data {
	case "input":
		name := getAttr(n, "name")
		switch name {
		case "s":
			if !sc.hasS {
				sc.hasS, sc.s = true, getAttr(n, "value")
			}
		case "t":
			if !sc.hasT {
				sc.hasT, sc.t = true, getAttr(n, "value")
			}
		default:
			typ := strings.ToLower(getAttr(n, "type"))
			if name != "" && (typ == "" || typ == "text") && sc.textInput == "" {
				sc.textInput = name
			}
		}
	case "textarea":
		if getAttr(n, "name") == RecaptchaField {
			sc.recaptcha = true
		}
	case "script":
		if strings.Contains(strings.ToLower(getAttr(n, "src")), "recaptcha") {
			sc.recaptcha = true
		}
	case "img":
		src := getAttr(n, "src")
		if src == "" {
			return
		}
		if sc.inForm > 0 && sc.formImage == "" {
			sc.formImage = src
		}
		if strings.Contains(strings.ToLower(src), "captcha") && sc.captchaImage == "" {
			sc.captchaImage = src
		}
	}
}

func resolve(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return r.String()
	}
	return b.ResolveReference(r).String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
