/*
Package uiflow drives browser end-to-end flows over WebDriver without
depending on any single selector, URL or page load being reliable.

It has three parts:

  - A Resolver finds elements through ordered lists of Candidates, waiting
    on each in turn until one is present, visible or clickable.
  - A Navigator tries navigation Targets in order and verifies arrival with a
    Check: a gate such as NotErrorPage combined with positive Signals like
    URLContains or TitleContainsAny.
  - A Session wraps one WebDriver session. It is created by package
    provision, locally or on a hosted grid, and released exactly once.

Example usage:

	p := &provision.Provisioner{}
	s, err := p.Provision(ctx, config.Default())
	if err != nil {
		panic(err)
	}
	defer s.Release()

	nav := uiflow.NewNavigator(s)
	check := uiflow.Check{
		Gate:    uiflow.NotErrorPage(),
		Signals: []uiflow.Signal{uiflow.TitleContainsAny("sign up")},
	}
	u, err := nav.NavigateAndVerify(uiflow.URLs(
		"https://soft.reelly.io/auth/sign-up",
		"https://soft.reelly.io/sign-up",
	), check, 25*time.Second)
	if err != nil {
		panic(err)
	}
	fmt.Printf("arrived at %s\n", u)

	r := uiflow.NewResolver(s, 10*time.Second)
	name := uiflow.Candidates{
		uiflow.ByID("Full-Name"),
		uiflow.ByCSS(`input[data-name="Full-Name"]`),
	}
	if err := r.Type(name, "Jane Doe", true); err != nil {
		panic(err)
	}

Errors are typed: NotFoundError, NavigationError, ProvisioningError and
AssertionError match ErrNotFound, ErrNavigationFailed, ErrProvisioningFailed
and ErrAssertionFailed under errors.Is.
*/
package uiflow
