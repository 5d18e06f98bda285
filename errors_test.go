package uiflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	kinds := []error{ErrNotFound, ErrNavigationFailed, ErrProvisioningFailed, ErrAssertionFailed}
	for _, tc := range []struct {
		err  error
		kind error
	}{
		{&NotFoundError{Candidates: Candidates{ByID("a")}, Err: cause}, ErrNotFound},
		{&NavigationError{Target: "https://a", Err: cause}, ErrNavigationFailed},
		{&ProvisioningError{Stage: "driver", Err: cause}, ErrProvisioningFailed},
		{&AssertionError{What: "title"}, ErrAssertionFailed},
	} {
		wrapped := fmt.Errorf("step: %w", tc.err)
		for _, k := range kinds {
			if got, want := errors.Is(wrapped, k), k == tc.kind; got != want {
				t.Errorf("errors.Is(%T, %v) = %t, want %t", tc.err, k, got, want)
			}
		}
	}
	if !errors.Is(&ProvisioningError{Stage: "session", Err: cause}, cause) {
		t.Errorf("ProvisioningError does not unwrap to its cause")
	}
}

func TestErrorMessages(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want string
	}{
		{
			&NavigationError{Target: "https://b", Title: "Sign in", URL: "https://b/login"},
			`navigation to "https://b" did not arrive: URL="https://b/login", TITLE="Sign in"`,
		},
		{
			&AssertionError{What: "param pricePer", Expected: "unit", Actual: "total", Context: "URL: https://x/?pricePer=total"},
			`param pricePer: expected "unit" but got "total" in URL: https://x/?pricePer=total`,
		},
		{
			&ProvisioningError{Stage: "credentials", Err: errors.New("BROWSERSTACK_USERNAME is not set")},
			"provisioning failed at credentials: BROWSERSTACK_USERNAME is not set",
		},
		{
			Assertf(false, "title %q looks wrong", "404"),
			`title "404" looks wrong`,
		},
	} {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
	if err := Assertf(true, "never"); err != nil {
		t.Errorf("Assertf(true) = %v, want nil", err)
	}
}
