package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bookshare/internal/inflight"
	"github.com/five82/bookshare/internal/lending"
)

func newLoginForm() form {
	return newForm(
		[]string{"Email", "Password"},
		newInput("you@example.com", 254),
		newPasswordInput(),
	)
}

func newSignupForm() form {
	return newForm(
		[]string{"Name", "Email", "Password"},
		newInput("Your name", 80),
		newInput("you@example.com", 254),
		newPasswordInput(),
	)
}

func (m *Model) submitLogin() tea.Cmd {
	email := strings.TrimSpace(m.login.value(0))
	password := m.login.value(1)
	if email == "" || password == "" {
		m.login.err = "Email and password are required."
		return nil
	}
	if _, ok := m.guard.TryBegin(inflight.Login); !ok {
		return nil
	}
	m.login.err = ""
	m.logger.Info("login requested", "email", email)
	return loginCmd(m.ctx, m.client, m.session, lending.Credentials{Email: email, Password: password})
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.Login)
	if msg.err != nil {
		m.logger.Warn("login failed", "kind", lending.Classify(msg.err).String(), "error", msg.err)
		if m.route == RouteLogin {
			m.login.err = authMessage(msg.err)
		}
		return m, nil
	}

	m.session.Login(msg.user)
	m.login = newLoginForm()
	pending := m.gate.Resume()
	cmds := []tea.Cmd{m.navigate(Route(pending.TargetPath), pending.Payload)}
	if m.route != RouteMyBooks {
		cmds = append(cmds, m.refreshDashboard())
	}
	m.setFlash("Signed in as "+displayName(msg.user)+".", false)
	return m, tea.Batch(cmds...)
}

func (m *Model) submitSignup() tea.Cmd {
	req := lending.Signup{
		Name:     strings.TrimSpace(m.signup.value(0)),
		Email:    strings.TrimSpace(m.signup.value(1)),
		Password: m.signup.value(2),
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		m.signup.err = "Name, email and password are required."
		return nil
	}
	if _, ok := m.guard.TryBegin(inflight.Signup); !ok {
		return nil
	}
	m.signup.err = ""
	return signupCmd(m.ctx, m.client, req)
}

func (m Model) handleSignupResult(msg signupResultMsg) (tea.Model, tea.Cmd) {
	m.guard.End(inflight.Signup)
	if msg.err != nil {
		m.logger.Warn("signup failed", "error", msg.err)
		if m.route == RouteSignup {
			m.signup.err = authMessage(msg.err)
		}
		return m, nil
	}
	m.logger.Info("account created")
	cmd := m.navigate(RouteLogin, nil)
	m.setFlash("Account created. Please log in.", false)
	return m, cmd
}

// authMessage explains a failed login or signup. These endpoints answer 401
// for bad credentials, which is not an expired session.
func authMessage(err error) string {
	var apiErr *lending.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 && apiErr.Message != "" {
		return apiErr.Message
	}
	if lending.Classify(err) == lending.KindAuthExpired {
		return "Invalid email or password."
	}
	return lending.Message(err)
}

func displayName(u lending.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return u.Email
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(m.login.view(styles))
	b.WriteString(styles.FaintText.Render("enter: next / submit   tab: switch field   ctrl+n: create an account   esc: back"))
	return b.String()
}

func (m Model) renderSignup() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(m.signup.view(styles))
	b.WriteString(styles.FaintText.Render("enter: next / submit   tab: switch field   esc: back to login"))
	return b.String()
}
