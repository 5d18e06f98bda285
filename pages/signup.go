package pages

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/wanmail/uiflow"
)

// Sign-up form locators, most specific first.
var (
	FullNameField = uiflow.Candidates{
		uiflow.ByID("Full-Name"),
		uiflow.ByCSS(`input[wizde="fullNameInput"]`),
		uiflow.ByCSS(`input[data-name="Full-Name"]`),
		uiflow.ByXPath(`//input[contains(@placeholder, "Full") or contains(@aria-label, "Full")]`),
	}
	PhoneField = uiflow.Candidates{
		uiflow.ByID("phone2"),
		uiflow.ByCSS(`input[wizde="phoneInput"]`),
		uiflow.ByXPath(`//input[contains(@placeholder,"Phone")]`),
	}
	EmailField = uiflow.Candidates{
		uiflow.ByID("Email-3"),
		uiflow.ByXPath(`//input[contains(@type,"email") or contains(@placeholder,"Email")]`),
	}
	PasswordField = uiflow.Candidates{
		uiflow.ByCSS(`input[wizde="passwordInput"]`),
		uiflow.ByID("field"),
		uiflow.ByCSS(`input[type="password"]`),
	}
	CreateAccountLink = uiflow.Candidates{
		uiflow.ByXPath(`//a[contains(@href,"sign-up")]`),
		uiflow.ByXPath(`//*[self::a or self::button][contains(normalize-space(.), "Create account")]`),
	}
	// SignUpLandmark is present only on the sign-up form.
	SignUpLandmark = FullNameField
	// SignUpLinks lead from the home page to the sign-up form.
	SignUpLinks = uiflow.Candidates{
		uiflow.ByPartialLinkText("Sign up"),
		uiflow.ByPartialLinkText("Create account"),
		uiflow.ByPartialLinkText("Register"),
		uiflow.ByPartialLinkText("Get started"),
		uiflow.ByPartialLinkText("Join now"),
		uiflow.ByPartialLinkText("Sign Up"),
	}
)

// SignUpRoutes are the direct sign-up paths, tried in order.
var SignUpRoutes = []string{
	"/auth/sign-up",
	"/sign-up",
	"/signup",
	"/register",
	"/auth/register",
	"/#/auth/sign-up",
}

// SignUpTitleFragments are accepted in the title of the auth pages.
var SignUpTitleFragments = []string{"reelly", "sign", "log in", "auth"}

// Registration is the data entered into the sign-up form.
type Registration struct {
	FullName string
	Phone    string
	// PhonePrefix must survive in the phone field, which may reformat
	// the rest of the number.
	PhonePrefix string
	Email       string
	Password    string
}

// TestRegistration is valid form data that is never submitted.
var TestRegistration = Registration{
	FullName:    "test+ozan careerist",
	Phone:       "+971555123456",
	PhonePrefix: "+971",
	Email:       "test.ozan.careerist+qa@example.com",
	Password:    "TestPassword!123",
}

// SignUpPage is the account registration form.
type SignUpPage struct {
	Base
	// BaseURL is the application root, without a trailing slash.
	BaseURL string
}

func (p *SignUpPage) arrival() uiflow.Check {
	return uiflow.Check{
		Gate:     uiflow.All(uiflow.NotErrorPage(), uiflow.DocumentStatusOK(p.Session)),
		Signals:  []uiflow.Signal{uiflow.TitleContainsAny(SignUpTitleFragments...)},
		SoftPass: uiflow.URLContains("sign-in"),
	}
}

// Open reaches the sign-up page through the direct routes and, failing
// those, through a sign-up link on the home page. It returns the URL it
// arrived at.
func (p *SignUpPage) Open() (string, error) {
	base := strings.TrimRight(p.BaseURL, "/")
	var targets []uiflow.Target
	for _, r := range SignUpRoutes {
		targets = append(targets, uiflow.Target{URL: base + r})
	}
	targets = append(targets, uiflow.Target{URL: base, Action: p.followSignUpLink})

	u, err := p.Nav.NavigateAndVerify(targets, p.arrival(), p.short())
	if err != nil {
		return "", fmt.Errorf("could not reach the sign-up page from %s: %w", base, err)
	}
	return u, nil
}

func (p *SignUpPage) followSignUpLink(*uiflow.Session) error {
	if _, err := p.Find.Resolve(uiflow.Candidates{uiflow.ByTag("body")}, uiflow.Present, p.Timeout); err != nil {
		return err
	}
	elem, err := p.Find.Resolve(SignUpLinks, uiflow.Clickable, p.short())
	if err != nil {
		return err
	}
	if err := p.Find.ScrollIntoView(elem); err != nil {
		glog.V(1).Infof("scrolling the sign-up link into view: %v", err)
	}
	return elem.Click()
}

// EnsureOnSignUp follows a create-account link when the application
// redirected to sign-in, then waits for the form.
func (p *SignUpPage) EnsureOnSignUp() error {
	u, err := p.Session.CurrentURL()
	if err != nil {
		return err
	}
	if strings.Contains(u, "sign-in") {
		glog.Infof("redirected to %s, following the create-account link", u)
		if err := p.Find.Click(CreateAccountLink); err != nil {
			glog.Warningf("following the create-account link: %v", err)
		}
	}
	_, err = p.Find.Resolve(SignUpLandmark, uiflow.Visible, 0)
	return err
}

// Fill types r into the form without submitting it.
func (p *SignUpPage) Fill(r Registration) error {
	if err := p.EnsureOnSignUp(); err != nil {
		return err
	}
	for _, f := range []struct {
		cands uiflow.Candidates
		text  string
	}{
		{FullNameField, r.FullName},
		{PhoneField, r.Phone},
		{EmailField, r.Email},
		{PasswordField, r.Password},
	} {
		if err := p.Find.Type(f.cands, f.text, true); err != nil {
			return err
		}
	}
	return nil
}

// AssertValues checks that the form shows r. The phone only has to contain
// r.PhonePrefix, and a masked password only has to have the same length.
func (p *SignUpPage) AssertValues(r Registration) error {
	name, err := p.Find.Value(FullNameField)
	if err != nil {
		return err
	}
	if name != r.FullName {
		return &uiflow.AssertionError{What: "full name", Expected: r.FullName, Actual: name}
	}
	phone, err := p.Find.Value(PhoneField)
	if err != nil {
		return err
	}
	if !strings.Contains(phone, r.PhonePrefix) {
		return &uiflow.AssertionError{What: "phone prefix", Expected: r.PhonePrefix, Actual: phone}
	}
	email, err := p.Find.Value(EmailField)
	if err != nil {
		return err
	}
	if email != r.Email {
		return &uiflow.AssertionError{What: "email", Expected: r.Email, Actual: email}
	}
	pwd, err := p.Find.Value(PasswordField)
	if err != nil {
		return err
	}
	if pwd != r.Password && len(pwd) != len(r.Password) {
		return &uiflow.AssertionError{
			What:     "password length",
			Expected: fmt.Sprint(len(r.Password)),
			Actual:   fmt.Sprint(len(pwd)),
		}
	}
	return nil
}

// TitleLooksRight checks the title against SignUpTitleFragments.
func (p *SignUpPage) TitleLooksRight() error {
	title, err := p.Session.Title()
	if err != nil {
		return err
	}
	ok, err := p.Nav.Evaluate(uiflow.Check{Signals: []uiflow.Signal{uiflow.TitleContainsAny(SignUpTitleFragments...)}})
	if err != nil {
		return err
	}
	if !ok {
		return &uiflow.AssertionError{
			What:     "title",
			Expected: "one of " + strings.Join(SignUpTitleFragments, ", "),
			Actual:   title,
		}
	}
	return nil
}
